package status

const (
	MsgShort = "Show the installation marker of the target host"
	MsgLong  = `Status reads the installation marker from the target host and prints when
Fedora CoreOS was installed, on which device and from which inputs.`
	MsgExample = `  fcosinstall status --host 192.0.2.10`
)
