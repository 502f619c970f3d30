package render

const (
	MsgShort = "Build the merged Ignition document without installing"
	MsgLong  = `Render runs the local half of an install: templates are rendered, compiled
and validated, then merged in order. The merged document is written to
standard output, or to the file named by --out.

The target host is never contacted.`
	MsgExample = `  fcosinstall render --spec-version 1.6.0 --device /dev/sda -t base.bu -o node1.ign`

	MsgFlagOut = "Write the document to this file instead of standard output"
)
