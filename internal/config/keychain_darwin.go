//go:build darwin

package config

import "os/exec"

// keychainGet reads a generic password from the login keychain. -w prints
// only the secret, no attribute dump.
func keychainGet(service, account string) ([]byte, error) {
	return exec.Command("security", "find-generic-password",
		"-s", service, "-a", account, "-w").Output()
}
