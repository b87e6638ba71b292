package app

import (
	"github.com/spf13/pflag"
)

// CliOptions is implemented by the root options struct of a binary.
type CliOptions interface {
	// Flags returns the flags grouped by section.
	Flags() NamedFlagSets
	// Complete fills derived defaults and environment secrets.
	Complete() error
	// Validate reports every invalid field.
	Validate() error
}

// NamedFlagSets keeps flag sets in registration order so that help output
// groups flags by configuration section.
type NamedFlagSets struct {
	Order    []string
	FlagSets map[string]*pflag.FlagSet
}

// FlagSet returns the flag set of name, creating it on first use.
func (nfs *NamedFlagSets) FlagSet(name string) *pflag.FlagSet {
	if nfs.FlagSets == nil {
		nfs.FlagSets = make(map[string]*pflag.FlagSet)
	}
	if _, ok := nfs.FlagSets[name]; !ok {
		nfs.FlagSets[name] = pflag.NewFlagSet(name, pflag.ExitOnError)
		nfs.Order = append(nfs.Order, name)
	}
	return nfs.FlagSets[name]
}
