package main

import (
	"flag"
	"log"

	"github.com/robotalks/arena.go/pkg/env"
	fx "github.com/robotalks/arena.go/pkg/framework"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()
	cfg, err := env.Default().NewConfig()
	if err != nil {
		log.Fatalln(err)
	}
	fx.NewLoop().Add(env.MustNew(cfg)).RunOrFail()
}
