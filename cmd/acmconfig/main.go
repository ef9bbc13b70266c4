// Copyright 2026 The ACM Config Authors
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

// Command acmconfig drives the ACM bypass configuration library from
// a JSON descriptor file, one subcommand per library lifecycle stage.
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	acm "github.com/STMicroelectronics/tttech-tsn-acm-content-sub001"
	"github.com/STMicroelectronics/tttech-tsn-acm-content-sub001/configfile"
)

// Flags wraps a FlagSet so that typed values from flags can be
// retrieved without every caller re-parsing strings.
type Flags struct {
	*pflag.FlagSet
}

// Bool returns the boolean value of the flag given by name. It
// returns false if the flag does not exist or its value does not
// parse as a boolean.
func (f Flags) Bool(name string) bool {
	fl := f.FlagSet.Lookup(name)
	if fl == nil {
		return false
	}
	v, _ := strconv.ParseBool(fl.Value.String())
	return v
}

var (
	descriptorPath string
	deviceRoot     string
	configFilePath string
	verbose        bool
)

func main() {
	root := &cobra.Command{
		Use:   "acmconfig",
		Short: "Build, validate and apply ACM bypass configurations",
	}
	root.PersistentFlags().StringVar(&descriptorPath, "descriptor", "", "path to the JSON configuration descriptor")
	root.PersistentFlags().StringVar(&deviceRoot, "device-root", "", "override the device tree root (default /sys/devices/acm)")
	root.PersistentFlags().StringVar(&configFilePath, "config-file", configfile.DefaultPath, "path to the companion delay/prefix config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		buildCmd(),
		validateCmd(),
		applyCmd(),
		applyScheduleCmd(),
		disableCmd(),
		statusCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "acmconfig:", err)
		os.Exit(1)
	}
}

func setupLogging() {
	if verbose {
		l, _ := zap.NewDevelopment()
		acm.SetLogger(l)
	}
}

func newContextAndDescriptor() (*acm.Context, *descriptor, error) {
	if descriptorPath == "" {
		return nil, nil, fmt.Errorf("--descriptor is required")
	}
	d, err := loadDescriptor(descriptorPath)
	if err != nil {
		return nil, nil, err
	}
	var ctx *acm.Context
	if deviceRoot == "" {
		ctx = acm.NewMemoryDeviceContext()
	} else {
		ctx = acm.NewContext(nil)
	}
	return ctx, d, nil
}

func buildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the configuration and print a summary (no final validation, no device writes)",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			ctx, d, err := newContextAndDescriptor()
			if err != nil {
				return err
			}
			cfg, err := buildConfig(ctx, d)
			if err != nil {
				return err
			}
			printSummary(cfg)
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Build and run final validation without writing to the device",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			ctx, d, err := newContextAndDescriptor()
			if err != nil {
				return err
			}
			cfg, err := buildConfig(ctx, d)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Println("configuration is valid")
			return nil
		},
	}
}

func applyCmd() *cobra.Command {
	var id uint32
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Build, validate and apply the configuration with the given id",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			ctx, d, err := newContextAndDescriptor()
			if err != nil {
				return err
			}
			cfg, err := buildConfig(ctx, d)
			if err != nil {
				return err
			}
			if err := cfg.ApplyConfig(id); err != nil {
				return err
			}
			printSummary(cfg)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&id, "id", 0, "nonzero configuration id to write on success")
	return cmd
}

func applyScheduleCmd() *cobra.Command {
	var newID, expectedID uint32
	cmd := &cobra.Command{
		Use:   "apply-schedule",
		Short: "Rebuild the configuration and swap its schedule tables, compare-and-setting expected-id",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			ctx, d, err := newContextAndDescriptor()
			if err != nil {
				return err
			}
			cfg, err := buildConfig(ctx, d)
			if err != nil {
				return err
			}
			return cfg.ApplySchedule(newID, expectedID)
		},
	}
	cmd.Flags().Uint32Var(&newID, "new-id", 0, "configuration id to write on success")
	cmd.Flags().Uint32Var(&expectedID, "expected-id", 0, "configuration id the device must currently hold")
	return cmd
}

func disableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Disable the currently applied configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			ctx, d, err := newContextAndDescriptor()
			if err != nil {
				return err
			}
			cfg, err := buildConfig(ctx, d)
			if err != nil {
				return err
			}
			return cfg.DisableConfig()
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the live configuration id and a summary of the built configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := Flags{cmd.Flags()}
			if flags.Bool("verbose") {
				verbose = true
			}
			setupLogging()
			ctx, d, err := newContextAndDescriptor()
			if err != nil {
				return err
			}
			cfg, err := buildConfig(ctx, d)
			if err != nil {
				return err
			}
			id, err := cfg.ReadConfigIdentifier()
			if err != nil {
				return err
			}
			fmt.Printf("config_id: %d\n", id)
			printSummary(cfg)
			return nil
		},
	}
}

func printSummary(cfg *acm.Configuration) {
	totalBytes := 0
	for _, b := range cfg.MessageBuffers() {
		totalBytes += b.SizeInBlocks * 4
	}
	fmt.Printf("message buffers: %d (%s)\n", len(cfg.MessageBuffers()), humanize.Bytes(uint64(totalBytes)))
	for i, m := range cfg.Modules() {
		if m == nil {
			continue
		}
		fmt.Printf("module %d: %d streams, %d fsc commands, cycle=%s\n",
			i, len(m.Streams()), len(m.FSCList()), time.Duration(m.CycleNS))
	}
}
