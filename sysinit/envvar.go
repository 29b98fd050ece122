// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

// EnvVars is a map of environment variable values by name.
type EnvVars map[string]string

// List returns the variables in "key=value" form as used by [os/exec.Cmd],
// sorted by name.
func (e EnvVars) List() []string {
	list := make([]string, 0, len(e))
	for key, value := range sortedMap(e) {
		list = append(list, key+"="+value)
	}

	return list
}

// With returns a copy with the given variable added or replaced.
func (e EnvVars) With(key, value string) EnvVars {
	envVars := make(EnvVars, len(e)+1)
	for k, v := range e {
		envVars[k] = v
	}

	envVars[key] = value

	return envVars
}

// SetEnv sets the given [EnvVars] in the environment of the process.
func SetEnv(envVars EnvVars) error {
	for key, value := range sortedMap(envVars) {
		err := setenv(key, value)
		if err != nil {
			return err
		}
	}

	return nil
}
