package main

import (
	"flag"
	"log"

	"github.com/danmuck/objsync/internal/config"
)

func main() {
	kind := flag.String("kind", "peer", "config kind: peer|peer-local")
	output := flag.String("output", "cmd/objsyncd/config.toml", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "cmd/objsyncd/config.toml", "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		if _, err := config.Load(*input); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated peer config at %s", *input)
		return
	}

	if err := config.WriteTemplate(*output, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, *output)
}
