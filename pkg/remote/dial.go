package remote

import (
	"context"

	"github.com/kudato/fcosinstall/pkg/command"
	"github.com/kudato/fcosinstall/pkg/config"
	"github.com/kudato/fcosinstall/pkg/errors"
)

// Dial opens the transport named by cfg.Remote.Transport.
func Dial(ctx context.Context, cfg *config.Config) (*Client, error) {
	r := cfg.Remote
	become := ""
	if r.Become {
		become = r.BecomeCommand
	}

	switch r.Transport {
	case config.TransportLocal:
		return NewLocal(command.NewExec(), become), nil
	case config.TransportSSH:
		return DialSSH(ctx, SSHOptions{
			Host:                  r.Host,
			Port:                  r.Port,
			User:                  r.User,
			IdentityFile:          r.IdentityFile,
			Password:              r.Password,
			KnownHosts:            r.KnownHosts,
			InsecureIgnoreHostKey: r.InsecureIgnoreHostKey,
			ConnectTimeout:        cfg.Timeouts.Connect,
			BecomeCommand:         become,
		})
	default:
		return nil, errors.Newf(errors.ErrInvalidInput, "unknown transport %q", r.Transport)
	}
}
