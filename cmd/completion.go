package cmd

import (
	"flag"

	"github.com/etnz/valuation"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// Completion describes the pmv command line for shell completion: the
// subcommands, their flags and the global flags.
func Completion() *complete.Command {
	c := &complete.Command{
		Sub:   make(map[string]*complete.Command, len(Commands)),
		Flags: flagPredictors(flag.CommandLine, nil),
	}
	for _, cmd := range Commands {
		f := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
		cmd.SetFlags(f)
		sub := &complete.Command{Flags: flagPredictors(f, predictorsOf(cmd.Name()))}
		if cmd.Name() == "import" {
			sub.Args = predict.Files("*.csv")
		}
		c.Sub[cmd.Name()] = sub
	}
	return c
}

// predictorsOf returns the flag values worth suggesting for command name.
func predictorsOf(name string) map[string]complete.Predictor {
	var types []string
	for _, t := range valuation.EventTypes() {
		types = append(types, t.String())
	}
	switch name {
	case "add", "update":
		return map[string]complete.Predictor{"type": predict.Set(types)}
	case "tx":
		return map[string]complete.Predictor{"sort": predict.Set(valuation.EventColumns())}
	case "snapshot":
		return map[string]complete.Predictor{"sort": predict.Set(valuation.PositionColumns())}
	case "export":
		return map[string]complete.Predictor{"o": predict.Files("*")}
	}
	return nil
}

func flagPredictors(f *flag.FlagSet, known map[string]complete.Predictor) map[string]complete.Predictor {
	m := make(map[string]complete.Predictor)
	f.VisitAll(func(fl *flag.Flag) {
		if p, ok := known[fl.Name]; ok {
			m[fl.Name] = p
			return
		}
		if b, ok := fl.Value.(interface{ IsBoolFlag() bool }); ok && b.IsBoolFlag() {
			m[fl.Name] = predict.Nothing
			return
		}
		m[fl.Name] = predict.Something
	})
	return m
}
