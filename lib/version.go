package lib

// Banner the banner
const Banner = `
                 _                  
  _ __ ___   __| | ___ _ __   ___  
 | '_ ' _ \ / _' |/ _ \ '_ \ / _ \ 
 | | | | | | (_| |  __/ | | | (_) |
 |_| |_| |_|\__,_|\___|_| |_|\___/ 
`

var (
	// Version is the current version.
	Version = "(untracked)"
	// CommitSHA is the commit sha.
	CommitSHA = "(unknown)"
)
