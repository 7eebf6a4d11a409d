// Package valuation derives the positions and the value of investment
// portfolios from their ledger of events and from market quotes.
//
// The core functionalities include:
//   - Ledger: portfolio events (buys, sells, deliveries, dividends, interest,
//     cash movements, account fees and tax refunds) validated into a closed
//     set of types and replayed in (time, id) order.
//   - Positions: quantity, average cost basis, fees and gains per security,
//     with proportional cost basis reduction on sells and outbound deliveries.
//   - Snapshots: the value of a portfolio as of any point in time, with its
//     cash balance and totals, in the portfolio reporting currency.
//   - Transactions: creation, masked update and CSV import of events, refusing
//     any change that would sell shares that are not held.
//
// Monetary amounts are integers in minor units (see package currency);
// quantities are float64. Collaborators (portfolio and security registries,
// event and quote stores, exchange rates) are interfaces, implemented by
// package storage. This package serves as the foundation of the pmv command
// line tool.
package valuation
