// Copyright 2024 Google LLC
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
	"strconv"
	"strings"

	"github.com/picotm-go/picotm/internal/ofd"
	"github.com/picotm-go/picotm/txfd"
)

// LogSeverity represents the logging severity and can accept the following values
// "TRACE", "DEBUG", "INFO", "WARNING", "ERROR", "OFF"
type LogSeverity string

// Constants for all supported log severities.
const (
	TraceLogSeverity   LogSeverity = "TRACE"
	DebugLogSeverity   LogSeverity = "DEBUG"
	InfoLogSeverity    LogSeverity = "INFO"
	WarningLogSeverity LogSeverity = "WARNING"
	ErrorLogSeverity   LogSeverity = "ERROR"
	OffLogSeverity     LogSeverity = "OFF"
)

var severityRanking = map[LogSeverity]int{
	TraceLogSeverity:   0,
	DebugLogSeverity:   1,
	InfoLogSeverity:    2,
	WarningLogSeverity: 3,
	ErrorLogSeverity:   4,
	OffLogSeverity:     5,
}

func (l *LogSeverity) UnmarshalText(text []byte) error {
	level := LogSeverity(strings.ToUpper(string(text)))
	if _, ok := severityRanking[level]; !ok {
		return fmt.Errorf("invalid log severity level: %s. Must be one of [TRACE, DEBUG, INFO, WARNING, ERROR, OFF]", text)
	}
	*l = level
	return nil
}

// Rank returns the integer representation of the severity rank.
// Returns -1 if the severity is unknown.
func (l LogSeverity) Rank() int {
	if rank, ok := severityRanking[l]; ok {
		return rank
	}
	return -1
}

// CCMode names one of txfd's concurrency-control modes for use in
// config files and flags: "noundo", "ts", "2pl", or "2pl-ext".
type CCMode string

var ccModeByName = map[CCMode]ofd.CCMode{
	"noundo": ofd.NoUndo,
	"ts":     ofd.TS,
	"2pl":    ofd.TwoPL,
	"2pl-ext": ofd.TwoPLExt,
}

func (c *CCMode) UnmarshalText(text []byte) error {
	mode := CCMode(strings.ToLower(string(text)))
	if _, ok := ccModeByName[mode]; !ok {
		return fmt.Errorf("invalid concurrency-control mode: %s. Must be one of [noundo, ts, 2pl, 2pl-ext]", text)
	}
	*c = mode
	return nil
}

// Resolve maps a CCMode name to the ofd.CCMode constant it names.
func (c CCMode) Resolve() ofd.CCMode { return ccModeByName[c] }

// ValidateMode names one of txfd's commit-time validation scopes for
// use in config files and flags: "op", "domain", or "full".
type ValidateMode string

var validateModeByName = map[ValidateMode]txfd.ValidateMode{
	"op":     txfd.ValidateOp,
	"domain": txfd.ValidateDomain,
	"full":   txfd.ValidateFull,
}

func (v *ValidateMode) UnmarshalText(text []byte) error {
	mode := ValidateMode(strings.ToLower(string(text)))
	if _, ok := validateModeByName[mode]; !ok {
		return fmt.Errorf("invalid validate mode: %s. Must be one of [op, domain, full]", text)
	}
	*v = mode
	return nil
}

// Resolve maps a ValidateMode name to the txfd.ValidateMode constant it names.
func (v ValidateMode) Resolve() txfd.ValidateMode { return validateModeByName[v] }

// Octal is the datatype for params such as file-mode which accept a
// base-8 value. DecodeHook handles it; no Config field has this type.
type Octal int

func (o *Octal) UnmarshalText(text []byte) error {
	v, err := strconv.ParseInt(string(text), 8, 32)
	if err != nil {
		return err
	}
	*o = Octal(v)
	return nil
}

func (o Octal) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(o), 8)), nil
}

// fileTypeNames lists the config keys BindFlags accepts for per-type
// concurrency-control overrides, matching ofd.Type's dispatch axis.
var fileTypeNames = []string{"regular", "fifo", "socket"}
