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

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/picotm-go/picotm/internal/ofd"
	"github.com/picotm-go/picotm/txfd"
)

// Load binds flagSet's flags, reads configFile (if non-empty), and
// returns the resulting, validated Config. Environment variables are
// not consulted.
func Load(flagSet *pflag.FlagSet, configFile string) (*Config, error) {
	if err := BindFlags(flagSet); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %q: %w", configFile, err)
		}
	}

	cfg := GetDefaultConfig()
	if err := viper.Unmarshal(&cfg, viper.DecodeHook(DecodeHook()), func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Apply wires a parsed Config into txfd's process-wide tables: the
// per-type concurrency-control modes and the commit-time validation
// scope every transaction uses from this point on.
//
// Apply does not resize the shared file-descriptor table — txfd
// allocates it once, at package init, sized by DefaultMaxNumFD.
// cfg.FileDescriptor.MaxNumFD is validated but otherwise advisory in
// this build; wiring it would mean replacing txfd's package-level
// table with a lazily-initialized one, which isn't worth the
// indirection for a single process-lifetime knob.
func Apply(cfg *Config) error {
	for _, name := range fileTypeNames {
		mode, err := fileTypeCCMode(cfg, name)
		if err != nil {
			return err
		}
		typ, err := resolveFileType(name)
		if err != nil {
			return err
		}
		txfd.SetTypeCCMode(typ, mode.Resolve())
	}
	txfd.SetValidateMode(cfg.ConcurrencyControl.ValidateMode.Resolve())
	return nil
}

func resolveFileType(name string) (ofd.Type, error) {
	switch name {
	case "regular":
		return ofd.Regular, nil
	case "fifo":
		return ofd.Fifo, nil
	case "socket":
		return ofd.Socket, nil
	default:
		return 0, fmt.Errorf("unknown file type %q", name)
	}
}
