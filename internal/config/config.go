// Package config builds util.Options from a YAML file, optional .env files
// and KSWAP_* environment variables, in that order of precedence (lowest
// first) on top of util.DefaultOptions.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "KSWAP_"

// Load reads the YAML file at path over the defaults. An empty path yields
// the defaults.
func Load(path string) (util.Options, error) {
	opts := util.DefaultOptions()
	if path == "" {
		return opts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("[config] [Load] %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return opts, fmt.Errorf("[config] [Load] %s: %w", path, err)
	}
	return opts, nil
}

// LoadEnv applies KSWAP_* overrides to opts. Values come from the process
// environment first, then from the given .env files; the process
// environment itself is left untouched.
func LoadEnv(opts util.Options, files ...string) (util.Options, error) {
	fileEnv := map[string]string{}
	if len(files) > 0 {
		var err error
		if fileEnv, err = godotenv.Read(files...); err != nil {
			return opts, fmt.Errorf("[config] [LoadEnv] %w", err)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			return v, true
		}
		v, ok := fileEnv[envPrefix+key]
		return v, ok
	}

	var errs []error
	setInt := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	setAddr := func(key string, dst *util.PhysAddr) {
		if v, ok := lookup(key); ok {
			n, err := strconv.ParseUint(v, 0, 32)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = util.PhysAddr(n)
		}
	}
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	setInt("PHYS_FRAMES", &opts.PhysFrames)
	setAddr("KERNEL_END", &opts.KernelEnd)
	setAddr("EARLY_END", &opts.EarlyEnd)
	setInt("SWAP_SLOTS", &opts.SwapSlots)
	setString("SWAP_BACKEND", &opts.SwapBackend)
	setString("SWAP_PATH", &opts.SwapPath)
	setString("LOG_LEVEL", &opts.LogLevel)
	setString("MONITOR_ADDR", &opts.MonitorAddr)
	setInt("CPUS", &opts.CPUs)
	setInt("PROCESSES", &opts.Processes)
	setInt("PAGES_PER_PROC", &opts.PagesPerProc)
	setInt("ROUNDS", &opts.Rounds)
	if v, ok := lookup("ROUND_DELAY"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sROUND_DELAY: %w", envPrefix, err))
		} else {
			opts.RoundDelay = d
		}
	}

	if err := errors.Join(errs...); err != nil {
		return opts, fmt.Errorf("[config] [LoadEnv] %w", err)
	}
	return opts, nil
}

// Resolve loads path, applies the environment and validates the result.
func Resolve(path string, envFiles ...string) (util.Options, error) {
	opts, err := Load(path)
	if err != nil {
		return opts, err
	}
	if opts, err = LoadEnv(opts, envFiles...); err != nil {
		return opts, err
	}
	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("[config] [Resolve] %w", err)
	}
	return opts, nil
}

// Marshal renders opts as YAML, in the format Load reads.
func Marshal(opts util.Options) ([]byte, error) {
	return yaml.Marshal(opts)
}
