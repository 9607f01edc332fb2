package root

import (
	"github.com/classbridge/ptohub/apps/cli/cmd/auth"
	"github.com/classbridge/ptohub/apps/cli/cmd/bootstrap"
	"github.com/classbridge/ptohub/apps/cli/cmd/org"
)

func init() {
	Root().AddCommand(auth.Command())
	Root().AddCommand(bootstrap.Command())
	Root().AddCommand(org.Command())
}
