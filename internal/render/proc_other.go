//go:build !unix

package render

import "os/exec"

func configureProcessGroup(cmd *exec.Cmd) {}
