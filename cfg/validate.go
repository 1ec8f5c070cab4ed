// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cfg

import "fmt"

func isValidLogRotateConfig(config *LogRotateLoggingConfig) error {
	if config.MaxFileSizeMb <= 0 {
		return fmt.Errorf("max-file-size-mb should be atleast 1")
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count should be 0 (to retain all backup files) or a positive value")
	}
	return nil
}

func isValidFileDescriptorConfig(config *FileDescriptorConfig) error {
	if config.MaxNumFD <= 0 {
		return fmt.Errorf("max-num-fd should be at least 1")
	}
	return nil
}

// isValidSocketCCMode rejects every socket CC mode but noundo: this
// port's 2PL_EXT is a stub that always escalates to irrevocable
// (spec.md's socket extension Open Question), so configuring anything
// else for sockets would silently do nothing.
func isValidSocketCCMode(mode CCMode) error {
	if mode != "noundo" {
		return fmt.Errorf("concurrency-control.socket only supports \"noundo\" in this build, got %q", mode)
	}
	return nil
}

// ValidateConfig returns a non-nil error if the config is invalid.
func ValidateConfig(config *Config) error {
	if err := isValidLogRotateConfig(&config.Logging.LogRotate); err != nil {
		return fmt.Errorf("error parsing log-rotate config: %w", err)
	}
	if err := isValidFileDescriptorConfig(&config.FileDescriptor); err != nil {
		return fmt.Errorf("error parsing file-descriptor config: %w", err)
	}
	if err := isValidSocketCCMode(config.ConcurrencyControl.Socket); err != nil {
		return fmt.Errorf("error parsing concurrency-control config: %w", err)
	}
	return nil
}
