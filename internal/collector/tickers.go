package collector

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

var (
	tickerSep = regexp.MustCompile(`[,\s]+`)
	// letters, digits and the . ^ - = used by index, class-share and FX symbols
	symbolRe = regexp.MustCompile(`^[A-Z0-9^][A-Z0-9.^=-]*$`)
)

// maxTickerLine bounds a single line of a ticker file.
const maxTickerLine = 16 << 20

// ValidSymbol reports whether an upper-cased ticker is well formed.
func ValidSymbol(s string) bool { return symbolRe.MatchString(s) }

// ParseTickers reads tickers separated by commas, whitespace or newlines.
// Lines starting with '#' are comments.
func ParseTickers(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	// a whole list may sit on one comma-separated line
	sc.Buffer(make([]byte, 0, 64*1024), maxTickerLine)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, SplitTickers(line)...)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read tickers: %w", err)
	}
	return out, nil
}

// ParseTickerFile reads a ticker list file.
func ParseTickerFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ticker file: %w", err)
	}
	defer f.Close()
	return ParseTickers(f)
}

// SplitTickers splits an inline list such as "nvda, msft aapl".
func SplitTickers(s string) []string {
	var out []string
	for _, tok := range tickerSep.Split(strings.TrimSpace(s), -1) {
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// MergeTickers upper-cases every symbol and collapses duplicates across all
// lists, keeping first-seen order.
func MergeTickers(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, t := range list {
			t = strings.ToUpper(strings.TrimSpace(t))
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// LimitTickers keeps the first n tickers; n <= 0 keeps all.
func LimitTickers(tickers []string, n int) []string {
	if n <= 0 || n >= len(tickers) {
		return tickers
	}
	return tickers[:n]
}
