package main

import (
	"strings"

	"github.com/djlink/djlink/internal/identifier"
)

// parseIdentifiers turns CLI positional args into an identifier.Set.
// Each arg is one identifier; a multi-part primary key is written
// comma-separated ("orders,2026,0042").
func parseIdentifiers(args []string) identifier.Set {
	set := identifier.NewSet()
	for _, a := range args {
		set.Add(identifier.New(strings.Split(a, ",")...))
	}
	return set
}
