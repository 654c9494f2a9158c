package version

var (
	// GitCommit is the current HEAD set using ldflags.
	GitCommit string

	// Version is the built softwares version.
	Version = LLSemVer
)

func init() {
	if GitCommit != "" {
		Version += "-" + GitCommit
	}
}

const (
	// LLSemVer is the current version of ledgerlight.
	// Must be a string because scripts like dist.sh read this file.
	LLSemVer = "0.3.0"

	// ProtocolSemVer is the JSON-RPC method set the client speaks.
	ProtocolSemVer = "1.0.0"
)
