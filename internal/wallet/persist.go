// Package wallet owns account state, balances, transaction history and
// signing for every address the node manages locally.
package wallet

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/camilofabregas/bitcoin-node/internal/logx"
	"github.com/camilofabregas/bitcoin-node/internal/transactions"
	"github.com/camilofabregas/bitcoin-node/internal/utxo"
	"github.com/decred/slog"
)

// Wallet is the full set of accounts the node manages, backed by a
// single flat file on disk.
type Wallet struct {
	Accounts map[string]*Account
	Path     string
	logger   slog.Logger
}

func New(path string) *Wallet {
	return &Wallet{
		Accounts: make(map[string]*Account),
		Path:     path,
		logger:   logx.For(logx.WALLET),
	}
}

// AddAccount registers a new account under alias, refreshing its
// balance against the current UTXO set.
func (w *Wallet) AddAccount(alias, publicAddress, privateAddress string, set *utxo.Set) error {
	account := NewAccount(publicAddress, privateAddress)
	if err := account.RefreshBalance(set); err != nil {
		return err
	}
	w.Accounts[alias] = account
	return nil
}

// Save serialises every account to the wallet file: one WALLET line per
// account followed by its four sectioned transaction-history blocks.
// The file is rewritten atomically from scratch on every mutation.
func (w *Wallet) Save() error {
	if err := os.MkdirAll(filepath.Dir(w.Path), 0o755); err != nil {
		return fmt.Errorf("creating wallet directory: %w", err)
	}

	var buf bytes.Buffer
	for alias, account := range w.Accounts {
		fmt.Fprintf(&buf, "WALLET %s %s %s\n", alias, account.PublicAddress, account.PrivateAddress)
		if err := writeSection(&buf, "SENDING", account.Sending); err != nil {
			return err
		}
		if err := writeSection(&buf, "SENT", account.Sent); err != nil {
			return err
		}
		if err := writeSection(&buf, "RECEIVING", account.Receiving); err != nil {
			return err
		}
		if err := writeSection(&buf, "RECEIVED", account.SavedReceived); err != nil {
			return err
		}
	}

	tmp := w.Path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing wallet file: %w", err)
	}
	return os.Rename(tmp, w.Path)
}

func writeSection(buf *bytes.Buffer, header string, infos []TxnInfo) error {
	fmt.Fprintf(buf, "%s\n", header)
	for _, info := range infos {
		line, err := hexdumpLine(info)
		if err != nil {
			return err
		}
		buf.WriteString(line)
	}
	return nil
}

func hexdumpLine(info TxnInfo) (string, error) {
	raw, err := info.Txn.Serialize()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s %s %s\n", hex.EncodeToString(raw), info.Label, strconv.FormatFloat(info.Amount, 'f', -1, 64), info.Address, info.Block), nil
}

// Load reads an existing wallet file, if any, and re-binds every
// account and its transaction history. A missing file is not an error -
// it simply leaves the wallet empty.
func (w *Wallet) Load(set *utxo.Set) error {
	f, err := os.Open(w.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening wallet file: %w", err)
	}
	defer f.Close()

	var currentAlias string
	var currentSection TxnType

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "WALLET"):
			fields := strings.Fields(line)
			if len(fields) != 3 && len(fields) != 4 {
				return fmt.Errorf("malformed WALLET line: %q", line)
			}
			currentAlias = fields[1]
			privateAddress := ""
			if len(fields) == 4 {
				privateAddress = fields[3]
			}
			if err := w.AddAccount(currentAlias, fields[2], privateAddress, set); err != nil {
				return fmt.Errorf("loading account %s: %w", currentAlias, err)
			}
		case line == "SENDING":
			currentSection = Sending
		case line == "SENT":
			currentSection = Sent
		case line == "RECEIVING":
			currentSection = Receiving
		case line == "RECEIVED":
			currentSection = Received
		default:
			info, err := parseHexdumpLine(line)
			if err != nil {
				return fmt.Errorf("malformed txn history line: %w", err)
			}
			account, ok := w.Accounts[currentAlias]
			if !ok {
				continue
			}
			info.Type = currentSection
			switch currentSection {
			case Sending:
				account.Sending = append(account.Sending, info)
			case Sent:
				account.Sent = append(account.Sent, info)
			case Receiving:
				account.Receiving = append(account.Receiving, info)
			case Received:
				account.SavedReceived = append(account.SavedReceived, info)
			}
		}
	}

	w.logger.Info("loaded wallet data from disk")
	return scanner.Err()
}

func parseHexdumpLine(line string) (TxnInfo, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return TxnInfo{}, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}
	raw, err := hex.DecodeString(fields[0])
	if err != nil {
		return TxnInfo{}, fmt.Errorf("decoding txn hex: %w", err)
	}
	tx, err := transactions.ParseTransaction(bytes.NewReader(raw))
	if err != nil {
		return TxnInfo{}, fmt.Errorf("parsing txn: %w", err)
	}
	amount, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		amount = 0
	}
	return NewTxnInfo(tx, Undefined, fields[1], amount, fields[3], fields[4]), nil
}
