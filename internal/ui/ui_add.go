package ui

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/tartampluch/go-lunar-birthday/internal/config"
	"github.com/tartampluch/go-lunar-birthday/internal/engine"
)

// addWidgets holds the form fields of the add window.
type addWidgets struct {
	nameEntry  *widget.Entry
	monthEntry *NumericalEntry
	dayEntry   *NumericalEntry
	offsets    *widget.CheckGroup
	hours      *widget.CheckGroup

	// Option label -> value, rebuilt on every open so they follow the language.
	offsetValues map[string]int
	hourValues   map[string]int
}

// offsetLabel renders a reminder offset choice.
func (app *LunarBirthdayApp) offsetLabel(days int) string {
	if days == 0 {
		return app.GetMsg(config.TKeyOffsetSameDay)
	}
	label := app.localize(&i18n.LocalizeConfig{
		MessageID:    config.TKeyOffsetDays,
		TemplateData: map[string]interface{}{"Days": days},
		PluralCount:  days,
	})
	if label == "" {
		return strconv.Itoa(days)
	}
	return label
}

func rangeValidator(lo, hi int, msg func() string) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(s)
		if err != nil || v < lo || v > hi {
			return errors.New(msg())
		}
		return nil
	}
}

// newAddWidgets builds the form fields with the default reminder choices ticked.
func (app *LunarBirthdayApp) newAddWidgets() *addWidgets {
	aw := &addWidgets{
		offsetValues: make(map[string]int, len(config.OffsetOptions)),
		hourValues:   make(map[string]int, len(config.HourOptions)),
	}

	aw.nameEntry = widget.NewEntry()
	aw.nameEntry.Validator = func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(app.GetMsg(config.TKeyErrNameReq))
		}
		return nil
	}

	aw.monthEntry = NewNumericalEntry()
	aw.monthEntry.Validator = rangeValidator(config.MinLunarMonth, config.MaxLunarMonth,
		func() string { return app.GetMsg(config.TKeyErrMonth) })

	aw.dayEntry = NewNumericalEntry()
	aw.dayEntry.Validator = rangeValidator(config.MinLunarDay, config.MaxLunarDay,
		func() string { return app.GetMsg(config.TKeyErrDay) })

	var offsetLabels, defaultOffsets []string
	for _, d := range config.OffsetOptions {
		label := app.offsetLabel(d)
		aw.offsetValues[label] = d
		offsetLabels = append(offsetLabels, label)
		if d == config.DefaultRemindOffset {
			defaultOffsets = append(defaultOffsets, label)
		}
	}
	aw.offsets = widget.NewCheckGroup(offsetLabels, nil)
	aw.offsets.Horizontal = true
	aw.offsets.SetSelected(defaultOffsets)

	var hourLabels, defaultHours []string
	for _, h := range config.HourOptions {
		label := fmt.Sprintf(config.HourLabelFormat, h)
		aw.hourValues[label] = h
		hourLabels = append(hourLabels, label)
		if h == config.DefaultRemindHour {
			defaultHours = append(defaultHours, label)
		}
	}
	aw.hours = widget.NewCheckGroup(hourLabels, nil)
	aw.hours.Horizontal = true
	aw.hours.SetSelected(defaultHours)

	return aw
}

// record validates the form and returns the record to store (without id).
func (app *LunarBirthdayApp) record(aw *addWidgets) (engine.BirthdayRecord, error) {
	for _, v := range []fyne.Validatable{aw.nameEntry, aw.monthEntry, aw.dayEntry} {
		if err := v.Validate(); err != nil {
			return engine.BirthdayRecord{}, err
		}
	}

	offsets := make([]int, 0, len(aw.offsets.Selected))
	for _, label := range aw.offsets.Selected {
		offsets = append(offsets, aw.offsetValues[label])
	}
	if len(offsets) == 0 {
		return engine.BirthdayRecord{}, errors.New(app.GetMsg(config.TKeyErrNoOffsets))
	}

	hours := make([]int, 0, len(aw.hours.Selected))
	for _, label := range aw.hours.Selected {
		hours = append(hours, aw.hourValues[label])
	}
	if len(hours) == 0 {
		return engine.BirthdayRecord{}, errors.New(app.GetMsg(config.TKeyErrNoHours))
	}

	month, _ := aw.monthEntry.Int()
	day, _ := aw.dayEntry.Int()

	return engine.BirthdayRecord{
		Name:          strings.TrimSpace(aw.nameEntry.Text),
		LunarMonth:    month,
		LunarDay:      day,
		RemindOffsets: offsets,
		RemindHours:   hours,
	}, nil
}

// fill loads an existing record into the form. Reminder values missing from
// the standard choices, as imported or legacy records may carry, get their own
// option so an edit never drops them.
func (app *LunarBirthdayApp) fill(aw *addWidgets, record engine.BirthdayRecord) {
	aw.nameEntry.SetText(record.Name)
	aw.monthEntry.SetText(strconv.Itoa(record.LunarMonth))
	aw.dayEntry.SetText(strconv.Itoa(record.LunarDay))

	offsets := make([]string, 0, len(record.RemindOffsets))
	for _, d := range record.RemindOffsets {
		label := app.offsetLabel(d)
		if _, ok := aw.offsetValues[label]; !ok {
			aw.offsetValues[label] = d
			aw.offsets.Options = append(aw.offsets.Options, label)
		}
		offsets = append(offsets, label)
	}
	aw.offsets.SetSelected(offsets)

	hours := make([]string, 0, len(record.RemindHours))
	for _, h := range record.RemindHours {
		label := fmt.Sprintf(config.HourLabelFormat, h)
		if _, ok := aw.hourValues[label]; !ok {
			aw.hourValues[label] = h
			aw.hours.Options = append(aw.hours.Options, label)
		}
		hours = append(hours, label)
	}
	aw.hours.SetSelected(hours)
}

// ShowAddWindow displays the form creating a new lunar birthday.
func (app *LunarBirthdayApp) ShowAddWindow() {
	app.showRecordWindow(nil, nil)
}

// ShowEditWindow displays the form prefilled with record. Saving replaces the
// stored record and runs onSaved.
func (app *LunarBirthdayApp) ShowEditWindow(record engine.BirthdayRecord, onSaved func()) {
	app.showRecordWindow(&record, onSaved)
}

// showRecordWindow backs both the add and the edit form. Only one of them is
// open at a time; a second call focuses it.
func (app *LunarBirthdayApp) showRecordWindow(existing *engine.BirthdayRecord, onSaved func()) {
	if app.addWindow != nil {
		slog.Debug(config.MsgFocusWindow, config.LogKeyComponent, config.CompUIAdd)
		app.addWindow.RequestFocus()
		return
	}

	titleKey := config.TKeyWinAdd
	if existing != nil {
		titleKey = config.TKeyWinEdit
		slog.Info(config.MsgOpenEdit,
			config.LogKeyComponent, config.CompUIAdd,
			config.LogKeyRecordID, existing.ID)
	} else {
		slog.Info(config.MsgOpenAdd, config.LogKeyComponent, config.CompUIAdd)
	}
	w := app.App.NewWindow(app.GetMsg(titleKey))
	app.addWindow = w

	aw := app.newAddWidgets()
	if existing != nil {
		app.fill(aw, *existing)
	}

	form := widget.NewForm(
		widget.NewFormItem(app.GetMsg(config.TKeyLblName), aw.nameEntry),
		widget.NewFormItem(app.GetMsg(config.TKeyLblLunarMonth), aw.monthEntry),
		widget.NewFormItem(app.GetMsg(config.TKeyLblLunarDay), aw.dayEntry),
	)

	remindForm := widget.NewForm(
		widget.NewFormItem(app.GetMsg(config.TKeyLblOffsets), aw.offsets),
		widget.NewFormItem(app.GetMsg(config.TKeyLblHours), aw.hours),
	)
	remindCard := widget.NewCard(app.GetMsg(config.TKeyLblReminders), "", remindForm)

	btnSave := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnSave), theme.DocumentSaveIcon(), func() {
		rec, err := app.record(aw)
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		if existing != nil {
			rec.ID = existing.ID
			err = app.updateBirthday(rec)
		} else {
			_, err = app.addBirthday(rec)
		}
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		if onSaved != nil {
			onSaved()
		}
		w.Close()
	})
	btnSave.Importance = widget.HighImportance
	btnCancel := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnCancel), theme.CancelIcon(), func() { w.Close() })

	content := container.NewPadded(container.NewVBox(
		form,
		remindCard,
		container.NewGridWithColumns(config.LayoutColumnsDouble, btnCancel, btnSave),
	))

	w.SetContent(content)
	w.Resize(fyne.NewSize(config.AddWindowWidth, content.MinSize().Height))
	w.SetFixedSize(true)
	w.SetOnClosed(func() { app.addWindow = nil })
	w.Show()
}
