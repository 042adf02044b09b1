package main

import (
	"github.com/oncotools/regfusion/dicecheck"
	"github.com/oncotools/regfusion/fusion"
	"github.com/oncotools/regfusion/pacsdir"
)

type Global struct {
	log logger

	Site   string
	Config *Config

	dir          *pacsdir.Dir
	resolver     *fusion.Resolver
	orchestrator *fusion.Orchestrator
	validator    *dicecheck.Validator
}

type logger interface {
	Print(v ...interface{})
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}
