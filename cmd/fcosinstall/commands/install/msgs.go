package install

import (
	_ "embed"
	"strings"
)

const (
	MsgShort = "Install Fedora CoreOS on a target disk"

	MsgFlagSpecVersion = "Butane fcos spec version every template declares (e.g. 1.6.0)"
	MsgFlagDevice      = "Target block device on the remote host (e.g. /dev/sda)"
	MsgFlagTemplate    = "Butane template to render and merge; repeat to add more, merged in order"
	MsgFlagForce       = "Install even when the installation marker is present"
	MsgFlagCheck       = "Build and validate the document and report what would happen, without touching the target"
	MsgFlagVar         = "Template variable as key=value; dotted keys nest; repeatable"
	MsgFlagVarsFile    = "YAML, TOML or JSON file of template variables; repeatable, later files win"
)

var (
	//go:embed install-long.txt
	msgLongRaw string
	MsgLong    = strings.TrimSpace(msgLongRaw)

	//go:embed install-example.txt
	msgExampleRaw string
	MsgExample    = strings.TrimSpace(msgExampleRaw)
)
