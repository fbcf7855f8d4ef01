package ui

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/robfig/cron/v3"
	"github.com/tartampluch/go-lunar-birthday/internal/alarm"
	"github.com/tartampluch/go-lunar-birthday/internal/config"
	"github.com/tartampluch/go-lunar-birthday/internal/engine"
	"github.com/tartampluch/go-lunar-birthday/internal/lunar"
	"github.com/tartampluch/go-lunar-birthday/internal/notify"
	"github.com/tartampluch/go-lunar-birthday/internal/server"
	"github.com/tartampluch/go-lunar-birthday/internal/store"
	"github.com/zalando/go-keyring"
)

//go:embed Icon.png
var appIconData []byte

// LunarBirthdayApp encapsulates the UI state, preferences, and background logic.
type LunarBirthdayApp struct {
	App         fyne.App
	Window      fyne.Window
	Preferences fyne.Preferences
	I18nBundle  *i18n.Bundle
	Localizer   *i18n.Localizer
	Ctx         context.Context

	Server   *server.FeedServer
	Fetcher  engine.VCardFetcher
	Clock    engine.Clock
	Provider lunar.Provider

	Store     *store.ReminderStore
	Scheduler *alarm.Scheduler
	Timers    *alarm.TimerTable
	Notifier  *notify.Handler
	Feed      *engine.FeedGenerator
	Importer  *engine.Importer
	Cron      *cron.Cron

	Tray desktop.App
	Menu *fyne.Menu

	TrayStatusItem    *fyne.MenuItem
	TrayBirthdaysItem *fyne.MenuItem
	TrayAddItem       *fyne.MenuItem
	TraySettingsItem  *fyne.MenuItem

	SupportedLanguages []string
	configChan         chan string
	locMut             sync.RWMutex

	// Upcoming State
	UpcomingMut     sync.RWMutex
	Upcoming        []engine.UpcomingBirthday
	birthdaysWindow fyne.Window
	addWindow       fyne.Window

	// SkipStartupReconcile leaves the timers untouched when Run starts.
	SkipStartupReconcile bool
}

// NewLunarBirthdayApp constructs the application and wires dependencies.
// A nil clock means the wall clock.
func NewLunarBirthdayApp(a fyne.App, ctx context.Context, srv *server.FeedServer, fetcher engine.VCardFetcher, clock engine.Clock) *LunarBirthdayApp {
	a.SetIcon(fyne.NewStaticResource(config.IconFile, appIconData))

	if clock == nil {
		clock = engine.RealClock{}
	}

	app := &LunarBirthdayApp{
		App:                a,
		Preferences:        a.Preferences(),
		Ctx:                ctx,
		Server:             srv,
		Fetcher:            fetcher,
		Clock:              clock,
		Provider:           lunar.NewSixTail(),
		SupportedLanguages: config.SupportedLanguages,
		configChan:         make(chan string, config.ChannelBufferSize),
		Upcoming:           make([]engine.UpcomingBirthday, 0),
	}

	planner := engine.NewPlanner(app.Provider)
	app.Notifier = &notify.Handler{Sender: a, Title: app.buildTitleFormatter()}
	app.Timers = alarm.NewTimerTable(clock, app.onTimerFired)
	app.Timers.SetExactAllowed(app.Preferences.BoolWithFallback(config.PrefExactAlarms, config.DefaultExactAlarms))

	app.Scheduler = alarm.NewScheduler(app.Timers, planner, clock)
	app.Scheduler.FormatMessage = app.buildMessageFormatter()

	app.Store = store.New(app.Preferences, app.Scheduler, clock)
	app.Feed = &engine.FeedGenerator{
		Clock:         clock,
		Planner:       planner,
		FormatSummary: app.buildSummaryFormatter(),
		FormatMessage: app.buildMessageFormatter(),
	}
	app.Importer = &engine.Importer{Fetcher: fetcher, Provider: app.Provider}
	return app
}

// Run launches the application services and the main UI loop.
func (app *LunarBirthdayApp) Run() {
	app.SetupI18n()
	app.watchPreferences()

	go func() {
		if err := app.Server.Start(app.Ctx); err != nil {
			slog.Error(config.ErrServerStartup,
				config.LogKeyError, err,
				config.LogKeyComponent, config.CompUI)

			app.App.SendNotification(fyne.NewNotification(
				config.TitleStartupError,
				fmt.Sprintf(config.MsgPortBusy, app.Server.Port)))
		}
	}()

	if desk, ok := app.App.(desktop.App); ok {
		app.Tray = desk
		app.Tray.SetSystemTrayIcon(app.App.Icon())
		app.setupTrayMenu()
	} else {
		slog.Warn(config.ErrTrayNotSupported,
			config.LogKeyComponent, config.CompUI)
	}

	app.restore()
	go app.Timers.Run(app.Ctx)
	go app.backgroundWorker()
	app.App.Run()
}

// restore rebuilds the timers from the stored records at startup. With
// SkipStartupReconcile set only the feed and the tray are rebuilt.
func (app *LunarBirthdayApp) restore() {
	if app.SkipStartupReconcile {
		slog.Info(config.MsgReconcileSkip, config.LogKeyComponent, config.CompUI)
		app.refreshViews(app.Store.Load())
		return
	}
	app.reconcile("startup")
}

// onTimerFired delivers the notification and refreshes the derived views.
func (app *LunarBirthdayApp) onTimerFired(p alarm.Payload) {
	app.Notifier.Deliver(p)
	app.reconcile("timer")
}

// watchPreferences monitors changes to settings that affect scheduling.
func (app *LunarBirthdayApp) watchPreferences() {
	app.Preferences.AddChangeListener(func() {
		select {
		case app.configChan <- config.PrefExactAlarms:
		default:
		}
	})
}

// setupTrayMenu constructs the system tray menu.
func (app *LunarBirthdayApp) setupTrayMenu() {
	app.TrayStatusItem = fyne.NewMenuItem(config.FallbackTrayLabel, func() {
		app.ShowBirthdaysWindow()
	})

	app.TrayBirthdaysItem = fyne.NewMenuItem(app.GetMsg(config.TKeyMenuBirthdays), func() {
		app.ShowBirthdaysWindow()
	})

	app.TrayAddItem = fyne.NewMenuItem(app.GetMsg(config.TKeyMenuAdd), func() {
		app.ShowAddWindow()
	})

	app.TraySettingsItem = fyne.NewMenuItem(app.GetMsg(config.TKeyMenuSettings), func() {
		app.ShowSettingsWindow()
	})

	app.Menu = fyne.NewMenu(config.AppName,
		app.TrayStatusItem,
		fyne.NewMenuItemSeparator(),
		app.TrayBirthdaysItem,
		app.TrayAddItem,
		app.TraySettingsItem,
	)

	if app.Tray != nil {
		app.Tray.SetSystemTrayMenu(app.Menu)
	}
}

// RefreshTrayMenu updates localized labels in the tray menu.
func (app *LunarBirthdayApp) RefreshTrayMenu() {
	if app.Menu == nil {
		return
	}
	app.TrayBirthdaysItem.Label = app.GetMsg(config.TKeyMenuBirthdays)
	app.TrayAddItem.Label = app.GetMsg(config.TKeyMenuAdd)
	app.TraySettingsItem.Label = app.GetMsg(config.TKeyMenuSettings)
	app.Menu.Refresh()
}

// backgroundWorker runs the daily reconcile and reacts to settings changes
// until the context ends.
func (app *LunarBirthdayApp) backgroundWorker() {
	log := slog.With(config.LogKeyComponent, config.CompWorker)

	if err := app.startDailyJob(); err != nil {
		log.Error(config.ErrCronRegister, config.LogKeyError, err)
	}

	exact := app.Timers.CanScheduleExact()
	for {
		select {
		case <-app.Ctx.Done():
			if app.Cron != nil {
				<-app.Cron.Stop().Done()
			}
			log.Info(config.MsgWorkerStop)
			return

		case <-app.configChan:
			if app.applyExactPreference(exact) {
				exact = !exact
				app.reconcile(config.PrefExactAlarms)
			}
		}
	}
}

// startDailyJob registers the after-midnight reconcile so that passed
// occurrences roll over to next year without a restart.
func (app *LunarBirthdayApp) startDailyJob() error {
	c := cron.New(cron.WithLocation(time.Local))
	if _, err := c.AddFunc(config.CronDailyReconcile, func() { app.reconcile("daily") }); err != nil {
		return fmt.Errorf("%s: %w", config.ErrCronRegister, err)
	}
	c.Start()
	app.Cron = c

	slog.Info(config.MsgWorkerStart,
		config.LogKeyComponent, config.CompWorker,
		config.LogKeySchedule, config.CronDailyReconcile)
	return nil
}

// applyExactPreference pushes the exact-alarm preference to the timer table and
// reports whether it differs from current.
func (app *LunarBirthdayApp) applyExactPreference(current bool) bool {
	want := app.Preferences.BoolWithFallback(config.PrefExactAlarms, config.DefaultExactAlarms)
	if want == current {
		return false
	}
	app.Timers.SetExactAllowed(want)
	slog.Info(config.MsgExactChanged,
		config.LogKeyComponent, config.CompUI,
		config.LogKeyExact, want)
	return true
}

// reconcile rebuilds every timer from the stored records, then refreshes the
// feed and the tray.
func (app *LunarBirthdayApp) reconcile(reason string) {
	slog.Debug(config.MsgReconcileReq,
		config.LogKeyComponent, config.CompUI,
		config.LogKeyReason, reason)

	app.refreshViews(app.Store.Reconcile())
}

// refreshViews regenerates the feed, the upcoming list and the tray status.
// Timers are not touched: callers either went through Store.Save or reconcile.
func (app *LunarBirthdayApp) refreshViews(records []engine.BirthdayRecord) {
	icsData, upcoming, countToday, err := app.Feed.Generate(records)
	if err != nil {
		slog.Error(config.MsgFeedFailed, config.LogKeyError, err, config.LogKeyComponent, config.CompUI)
		return
	}

	app.UpcomingMut.Lock()
	app.Upcoming = upcoming
	app.UpcomingMut.Unlock()

	if err := app.Server.Update(icsData, upcoming); err != nil {
		slog.Error(config.MsgFeedFailed, config.LogKeyError, err, config.LogKeyComponent, config.CompUI)
	}
	app.updateTrayStatus(countToday)
}

// updateTrayStatus updates the top menu item to show how many birthdays are today.
func (app *LunarBirthdayApp) updateTrayStatus(count int) {
	if app.Menu == nil || app.TrayStatusItem == nil {
		return
	}

	var label string
	if count == 0 {
		label = app.GetMsg(config.TKeyTrayStatusZero)
		if label == config.TKeyTrayStatusZero {
			label = fmt.Sprintf(config.FallbackTrayDefault, 0)
		}
	} else {
		label = app.localize(&i18n.LocalizeConfig{
			MessageID:    config.TKeyTrayStatus,
			TemplateData: map[string]interface{}{"Count": count},
			PluralCount:  count,
		})
		if label == "" {
			label = fmt.Sprintf(config.FallbackTrayDefault, count)
		}
	}

	app.TrayStatusItem.Label = label
	app.Menu.Refresh()
}

// addBirthday stores a new record; the store reconciles the timers.
func (app *LunarBirthdayApp) addBirthday(record engine.BirthdayRecord) (engine.BirthdayRecord, error) {
	added, err := app.Store.Add(record)
	if err != nil {
		return engine.BirthdayRecord{}, err
	}
	slog.Info(config.MsgRecordAdded,
		config.LogKeyComponent, config.CompUIAdd,
		config.LogKeyRecordID, added.ID)
	app.refreshViews(app.Store.Load())
	return added, nil
}

// updateBirthday replaces a stored record; the store re-plans its timers.
func (app *LunarBirthdayApp) updateBirthday(record engine.BirthdayRecord) error {
	if err := app.Store.Update(record); err != nil {
		return err
	}
	slog.Info(config.MsgRecordUpdated,
		config.LogKeyComponent, config.CompUIAdd,
		config.LogKeyRecordID, record.ID)
	app.refreshViews(app.Store.Load())
	return nil
}

// deleteBirthday removes a record; the store sweeps its timers.
func (app *LunarBirthdayApp) deleteBirthday(id int64) error {
	if err := app.Store.Delete(id); err != nil {
		return err
	}
	slog.Info(config.MsgRecordDeleted,
		config.LogKeyComponent, config.CompUI,
		config.LogKeyRecordID, id)
	app.refreshViews(app.Store.Load())
	return nil
}

// performImport reads the configured address book and merges its lunar birthdays.
func (app *LunarBirthdayApp) performImport(manual bool) {
	cfg := app.loadImportConfig()

	records, err := app.Importer.Import(app.Ctx, cfg)
	if err == nil {
		var added int
		added, err = app.Store.Merge(records)
		if err == nil {
			app.refreshViews(app.Store.Load())
			if manual {
				msg := app.localize(&i18n.LocalizeConfig{
					MessageID:    config.TKeyNotifImportOK,
					TemplateData: map[string]interface{}{"Count": added},
					PluralCount:  added,
				})
				if msg == "" {
					msg = fmt.Sprintf("%d", added)
				}
				app.App.SendNotification(fyne.NewNotification(config.AppName, msg))
			}
			return
		}
	}

	slog.Error(config.ErrImport, config.LogKeyError, err, config.LogKeyComponent, config.CompUI)
	if manual {
		app.App.SendNotification(fyne.NewNotification(config.TitleImportError, app.GetMsg(config.TKeyNotifImportErr)))
	}
}

// loadImportConfig assembles the importer configuration from preferences and keyring.
func (app *LunarBirthdayApp) loadImportConfig() engine.ImportConfig {
	cfg := engine.ImportConfig{
		Mode:         app.Preferences.StringWithFallback(config.PrefSourceMode, config.SourceModeLocal),
		LocalPath:    app.Preferences.String(config.PrefLocalPath),
		WebURL:       app.Preferences.String(config.PrefCardDAVURL),
		WebUser:      app.Preferences.String(config.PrefUsername),
		ConvertSolar: app.Preferences.Bool(config.PrefConvertSolar),
	}

	if cfg.WebUser != "" {
		if p, err := keyring.Get(config.KeyringService, cfg.WebUser); err == nil {
			cfg.WebPass = p
		} else {
			slog.Debug(config.MsgPassFail,
				config.LogKeyUser, cfg.WebUser,
				config.LogKeyError, err,
				config.LogKeyComponent, config.CompUI)
		}
	}
	return cfg
}

// buildSummaryFormatter returns a closure that localizes the event summary.
func (app *LunarBirthdayApp) buildSummaryFormatter() func(name string) string {
	return func(name string) string {
		return app.localize(&i18n.LocalizeConfig{
			MessageID:    config.TKeyEvtSummary,
			TemplateData: map[string]interface{}{"Name": name},
		})
	}
}

// buildTitleFormatter returns a closure that localizes notification titles.
func (app *LunarBirthdayApp) buildTitleFormatter() notify.TitleFormatter {
	return func(name string) string {
		return app.localize(&i18n.LocalizeConfig{
			MessageID:    config.TKeyNotifTitle,
			TemplateData: map[string]interface{}{"Name": name},
		})
	}
}

// buildMessageFormatter returns a closure that localizes reminder texts.
// An empty result makes the engine use its English fallback.
func (app *LunarBirthdayApp) buildMessageFormatter() engine.MessageFormatter {
	return func(name string, offsetDays, hour int) string {
		var key string
		switch offsetDays {
		case 0:
			key = config.TKeyMsgToday
		case 1:
			key = config.TKeyMsgTomorrow
		default:
			key = config.TKeyMsgDays
		}

		lc := &i18n.LocalizeConfig{
			MessageID:    key,
			TemplateData: map[string]interface{}{"Name": name, "Days": offsetDays},
		}
		// Only msg_days carries plural forms; a count on a plain message fails.
		if key == config.TKeyMsgDays {
			lc.PluralCount = offsetDays
		}
		msg := app.localize(lc)
		if msg == "" {
			return ""
		}

		part := app.localize(&i18n.LocalizeConfig{MessageID: dayPartKey(engine.DayPartOf(hour))})
		if part == "" {
			return ""
		}

		return app.localize(&i18n.LocalizeConfig{
			MessageID:    config.TKeyMsgAt,
			TemplateData: map[string]interface{}{"Message": msg, "DayPart": part, "Hour": hour},
		})
	}
}

func dayPartKey(p engine.DayPart) string {
	switch p {
	case engine.Morning:
		return config.TKeyDayMorning
	case engine.Afternoon:
		return config.TKeyDayAfternoon
	default:
		return config.TKeyDayEvening
	}
}
