//go:build !unix

package process

import "os/exec"

// configureProcess keeps exec's default cancellation, which kills only the
// direct child.
func configureProcess(*exec.Cmd) {}
