package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-vcard"
	"github.com/tartampluch/go-lunar-birthday/internal/config"
	"github.com/tartampluch/go-lunar-birthday/internal/lunar"
)

// ImportConfig contains all parameters required to import an address book.
type ImportConfig struct {
	Mode      string // config.SourceModeLocal or config.SourceModeWeb
	LocalPath string // Absolute path to the .vcf file
	WebURL    string // CardDAV or WebDAV URL
	WebUser   string // HTTP Basic Auth Username
	WebPass   string // HTTP Basic Auth Password

	// ConvertSolar derives a lunar birthday from a Gregorian BDAY with a known
	// year when the card carries no lunar date.
	ConvertSolar bool
}

// Importer reads lunar birthdays out of vCards.
type Importer struct {
	Fetcher  VCardFetcher
	Provider lunar.Provider
}

// Import returns one record (without id) per card carrying a usable lunar birthday.
// Malformed cards are skipped.
func (im *Importer) Import(ctx context.Context, cfg ImportConfig) ([]BirthdayRecord, error) {
	log := slog.With(
		config.LogKeyComponent, config.CompImporter,
		config.LogKeyMode, cfg.Mode,
	)
	log.InfoContext(ctx, config.MsgImportStarted)

	reader, err := im.acquireStream(ctx, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s: %w", config.ErrImport, err)
	}
	defer func() { _ = reader.Close() }()

	decoder := vcard.NewDecoder(reader)
	var records []BirthdayRecord
	processed := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		card, err := decoder.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Warn(config.MsgSkippedCard, config.LogKeyError, err)
			continue
		}
		processed++

		month, day, ok := im.lunarBirthday(card, cfg.ConvertSolar)
		if !ok {
			continue
		}

		records = append(records, BirthdayRecord{
			Name:       cardName(card),
			LunarMonth: month,
			LunarDay:   day,
		})
	}

	log.Info(config.MsgImportDone,
		slog.Group(config.LogKeyStats,
			slog.Int(config.LogKeyCount, processed),
			slog.Int(config.LogKeyImported, len(records)),
		))
	return records, nil
}

// acquireStream opens the appropriate data source based on configuration.
func (im *Importer) acquireStream(ctx context.Context, cfg ImportConfig) (io.ReadCloser, error) {
	switch cfg.Mode {
	case config.SourceModeLocal:
		if cfg.LocalPath == "" {
			return nil, errors.New(config.ErrLocalPathEmpty)
		}
		return os.Open(cfg.LocalPath)
	case config.SourceModeWeb:
		if cfg.WebURL == "" {
			return nil, errors.New(config.ErrWebURLEmpty)
		}
		if im.Fetcher == nil {
			return nil, errors.New(config.ErrFetcherMissing)
		}
		return im.Fetcher.Fetch(ctx, cfg.WebURL, cfg.WebUser, cfg.WebPass)
	default:
		return nil, fmt.Errorf("%s: %q", config.ErrModeUnsupport, cfg.Mode)
	}
}

// lunarBirthday looks for X-ALTBDAY or BDAY tagged CALSCALE=chinese, then
// optionally converts a Gregorian BDAY.
func (im *Importer) lunarBirthday(card vcard.Card, convertSolar bool) (int, int, bool) {
	for _, field := range []string{config.VCardAltBDAY, config.VCardBDAY} {
		for _, f := range card[field] {
			if !strings.EqualFold(f.Params.Get(config.VCardCalScale), config.CalScaleChinese) {
				continue
			}
			if month, day, err := parseMonthDay(f.Value); err == nil {
				return month, day, true
			}
			slog.Debug(config.MsgSkippedDate,
				config.LogKeyComponent, config.CompImporter,
				config.LogKeyValue, f.Value)
		}
	}

	if !convertSolar || im.Provider == nil {
		return 0, 0, false
	}
	for _, f := range card[config.VCardBDAY] {
		if scale := f.Params.Get(config.VCardCalScale); scale != "" && !strings.EqualFold(scale, config.ICalScale) {
			continue
		}
		birth, yearKnown, err := parseDate(f.Value)
		if err != nil || !yearKnown {
			continue
		}
		ld := im.Provider.SolarToLunar(birth)
		if ld.Leap {
			// A record cannot express an intercalary month.
			continue
		}
		return ld.Month, ld.Day, true
	}
	return 0, 0, false
}

// cardName picks FN, then N, then a placeholder.
func cardName(card vcard.Card) string {
	if fn := card.Get(config.VCardFN); fn != nil && fn.Value != "" {
		return fn.Value
	}
	if n := card.Get(config.VCardN); n != nil && n.Value != "" {
		return n.Value
	}
	return config.FallbackName
}

// parseMonthDay extracts month and day from YYYY-MM-DD, YYYYMMDD, --MM-DD or --MMDD.
// time.Parse is not used because lunar dates such as 2-30 are not valid Gregorian dates.
func parseMonthDay(value string) (int, int, error) {
	digits := strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(value), "--"), "-", "")
	if len(digits) != 4 && len(digits) != 8 {
		return 0, 0, errors.New(config.ErrDateParse)
	}
	md := digits[len(digits)-4:]

	month, err := strconv.Atoi(md[:2])
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", config.ErrDateParse, err)
	}
	day, err := strconv.Atoi(md[2:])
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", config.ErrDateParse, err)
	}

	r := BirthdayRecord{LunarMonth: month, LunarDay: day}
	if !r.ValidLunarDate() {
		return 0, 0, errors.New(config.ErrDateParse)
	}
	return month, day, nil
}

// parseDate handles the Gregorian vCard date formats.
func parseDate(value string) (time.Time, bool, error) {
	formatsWithYear := []string{
		config.DateFormatFullDash,
		config.DateFormatFullBasic,
		config.DateFormatRFC3339,
		config.DateFormatFullT,
	}
	for _, f := range formatsWithYear {
		if t, err := time.Parse(f, value); err == nil {
			return t, true, nil
		}
	}

	for _, f := range []string{config.DateFormatNoYearD, config.DateFormatNoYearB} {
		if t, err := time.Parse(f, value); err == nil {
			return time.Date(config.DefaultLeapYear, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), false, nil
		}
	}

	return time.Time{}, false, errors.New(config.ErrDateParse)
}
