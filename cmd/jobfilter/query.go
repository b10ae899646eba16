package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/oracle"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/rules"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/jobs"
	apperrors "github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/logger"
	"github.com/urfave/cli/v2"
)

// queryCommand provisions in-process filters from the data file, runs one
// query and writes the Result to stdout. Logs go to stderr.
func queryCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.SetupWriter(c.App.ErrWriter, cfg.Logging.Level, cfg.Logging.Format)
	if n := c.Int("max-results"); n > 0 {
		cfg.Filter.MaxResults = n
	}
	path := cfg.Jobs.Path
	if d := c.String("data"); d != "" {
		path = d
	}

	values, err := queryValues(c.String("after"), c.StringSlice("rule"))
	if err != nil {
		return err
	}

	p, err := buildPipeline(c.Context, cfg, oracle.NewMemoryStore(), jobs.FileSource{Path: path}, nil)
	if err != nil {
		return err
	}
	defer p.Close()

	res, err := p.assembler.Assemble(c.Context, rules.Parse(values))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// queryValues turns command-line flags into the form values the HTTP
// handler receives, so both paths share one parser.
func queryValues(after string, ruleFlags []string) (url.Values, error) {
	values := url.Values{}
	if after != "" {
		t, err := time.Parse(time.DateOnly, after)
		if err != nil {
			return nil, fmt.Errorf("--after %q: %w", after, apperrors.ErrInvalidInput)
		}
		values.Set(rules.ParamAfterYear, strconv.Itoa(t.Year()))
		values.Set(rules.ParamAfterMonth, strconv.Itoa(int(t.Month())))
		values.Set(rules.ParamAfterDay, strconv.Itoa(t.Day()))
	}
	for _, flag := range ruleFlags {
		parts := strings.SplitN(flag, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("--rule %q: want mode:field:words: %w", flag, apperrors.ErrInvalidInput)
		}
		mode, field, words := parts[0], parts[1], parts[2]
		if _, ok := rules.ParseMode(mode); !ok {
			return nil, fmt.Errorf("--rule %q: unknown mode %q: %w", flag, mode, apperrors.ErrInvalidInput)
		}
		if _, ok := jobs.ParseField(field); !ok {
			return nil, fmt.Errorf("--rule %q: unknown field %q: %w", flag, field, apperrors.ErrInvalidInput)
		}
		values.Add(rules.ParamRulesEnabled, "true")
		values.Add(rules.ParamRulesMode, mode)
		values.Add(rules.ParamRulesField, field)
		values.Add(rules.ParamRulesWords, words)
	}
	return values, nil
}
