package monitor

import (
	"math/big"
	"strings"
	"time"

	"tonvault/internal/models"
)

// Match returns the transactions that satisfy every filter, in feed order,
// stopping once req.RequiredCount have been found:
//   - the timestamp lies in [Since, Since+Window], both ends inclusive
//   - the inbound opcode equals cfg.ExpectedOpcode
//   - the query id is within cfg.QueryIDTolerance of req.QueryID
//   - the chain marked the transaction successful
func Match(cfg Config, req Request, txs []Transaction) []Transaction {
	since := req.Since.Unix()
	until := since + int64(cfg.Window/time.Second)
	limit := max(req.RequiredCount, 1)

	var matches []Transaction
	for _, tx := range txs {
		if len(matches) >= limit {
			break
		}
		if tx.Timestamp < since || tx.Timestamp > until {
			continue
		}
		if !tx.HasOpCode || tx.OpCode != cfg.ExpectedOpcode {
			continue
		}
		if !QueryIDMatches(tx, req.QueryID, cfg.QueryIDTolerance) {
			continue
		}
		if !tx.Success {
			continue
		}
		matches = append(matches, tx)
	}
	return matches
}

// QueryIDMatches compares a transaction query id against the expected one.
// A transaction without a decoded query id matches. Numeric ids match within
// tolerance; anything else must be textually equal.
func QueryIDMatches(tx Transaction, expected string, tolerance uint64) bool {
	if !tx.HasQueryID {
		return true
	}

	got, okGot := parseQueryID(tx.QueryID)
	want, okWant := parseQueryID(expected)
	if !okGot || !okWant {
		return tx.QueryID == expected
	}

	diff := new(big.Int).Sub(got, want)
	diff.Abs(diff)
	return diff.Cmp(new(big.Int).SetUint64(tolerance)) <= 0
}

func parseQueryID(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	if hex, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		if hex == "" {
			return nil, false
		}
		return new(big.Int).SetString(hex, 16)
	}
	// leading zeros stay decimal
	return new(big.Int).SetString(s, 10)
}

// Classify maps a match count to a result
func Classify(found, required int) models.MonitorResult {
	switch {
	case found == 0:
		return models.MonitorResultFailed
	case found >= required:
		return models.MonitorResultFullySuccess
	default:
		return models.MonitorResultPartialSuccess
	}
}
