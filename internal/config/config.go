// Package config loads the node's flat "key value" configuration file and
// the command-line arguments that point to it.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jessevdk/go-flags"
)

// Config mirrors every tunable the node reads at startup. Field names stay
// close to the config file's keys so Load's switch reads as a direct map.
type Config struct {
	Address            string
	ServerAddress       string
	TimeoutSecs         uint64
	Version             int32
	NodeNetworkLimited  uint64
	NodeNetwork         uint64
	UserAgent           string
	HeadersPath         string
	BlocksPath          string
	InitialBlockHeight  int
	InitialBlockTime    uint32
	WorkerCount         int
	BlocksPerInv        uint32
	PrintLogger         bool
	WalletsPath         string
	RetryCount          int
	ServerMode          bool
	MaxTxnMemory        int
}

// CLIArgs is the positional-argument struct handed to go-flags: the node
// takes a single required path to its config file.
type CLIArgs struct {
	Positional struct {
		ConfigPath string `positional-arg-name:"config-path" required:"true"`
	} `positional-args:"yes"`
}

// ParseArgs parses os.Args (excluding argv[0]) into a config file path.
func ParseArgs(args []string) (string, error) {
	var cli CLIArgs
	parser := flags.NewParser(&cli, flags.Default)
	parser.Usage = "path/to/node.config"
	if _, err := parser.ParseArgs(args); err != nil {
		return "", err
	}
	return cli.Positional.ConfigPath, nil
}

// defaults holds the values a Config starts with before any line
// overrides them: print_logger and server_mode are on unless the file
// turns them off.
func defaults() Config {
	return Config{
		PrintLogger: true,
		ServerMode:  true,
	}
}

// Load reads a flat "key value" config file, one setting per line. Any
// unrecognized key is a fatal configuration error - there is no silent
// ignore of typos here.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("error reading config file: %w", err)
	}
	defer f.Close()

	cfg := defaults()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 2 {
			return Config{}, fmt.Errorf("invalid config line %d: %q", lineNo, line)
		}
		key, value := parts[0], parts[1]
		if err := cfg.set(key, value); err != nil {
			return Config{}, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) set(key, value string) error {
	switch key {
	case "address":
		c.Address = value
	case "server_address":
		c.ServerAddress = value
	case "timeout_secs":
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("error parsing timeout_secs: %w", err)
		}
		c.TimeoutSecs = v
	case "version":
		v, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return fmt.Errorf("error parsing version: %w", err)
		}
		c.Version = int32(v)
	case "node_network_limited":
		v, err := strconv.ParseUint(strings.TrimPrefix(value, "0x"), 16, 64)
		if err != nil {
			return fmt.Errorf("error parsing node_network_limited: %w", err)
		}
		c.NodeNetworkLimited = v
	case "node_network":
		v, err := strconv.ParseUint(strings.TrimPrefix(value, "0x"), 16, 64)
		if err != nil {
			return fmt.Errorf("error parsing node_network: %w", err)
		}
		c.NodeNetwork = v
	case "user_agent_rustify":
		c.UserAgent = value
	case "headers_path":
		c.HeadersPath = value
	case "blocks_path":
		c.BlocksPath = value
	case "height_bloque_inicial":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("error parsing height_bloque_inicial: %w", err)
		}
		c.InitialBlockHeight = v
	case "timestamp_bloque_inicial":
		v, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("error parsing timestamp_bloque_inicial: %w", err)
		}
		c.InitialBlockTime = uint32(v)
	case "cant_threads":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("error parsing cant_threads: %w", err)
		}
		c.WorkerCount = v
	case "cant_blocks_por_inv":
		v, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("error parsing cant_blocks_por_inv: %w", err)
		}
		c.BlocksPerInv = uint32(v)
	case "print_logger":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("error parsing print_logger: %w", err)
		}
		c.PrintLogger = v
	case "wallets_path":
		c.WalletsPath = value
	case "cant_retries":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("error parsing cant_retries: %w", err)
		}
		c.RetryCount = v
	case "server_mode":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("error parsing server_mode: %w", err)
		}
		c.ServerMode = v
	case "cant_max_txn_memoria":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("error parsing cant_max_txn_memoria: %w", err)
		}
		c.MaxTxnMemory = v
	default:
		return fmt.Errorf("unknown config parameter: %s", key)
	}
	return nil
}
