package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sheria-labs/registries/pkg/schema"
)

// cmdTemplate prints the canonical-header CSV template of a registry so
// clerks can fill uploads that hit the exact-match header path.
func cmdTemplate(args []string) {
	fs := flag.NewFlagSet("template", flag.ExitOnError)
	schemasDir := fs.String("schemas-dir", "", "optional schema override directory")
	fs.Parse(args)

	reg := schema.NewRegistry(*schemasDir)
	if err := reg.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Erreur chargement schemas: %v\n", err)
		os.Exit(1)
	}

	if fs.NArg() == 0 {
		fmt.Println("Usage :")
		fmt.Println("  registries template <registry-id>")
		fmt.Println()
		for _, d := range reg.All() {
			fmt.Printf("  %s\n", d.ID)
		}
		os.Exit(1)
	}

	desc, err := reg.Get(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Erreur: %v\n", err)
		os.Exit(1)
	}
	os.Stdout.Write(desc.Template())
}
