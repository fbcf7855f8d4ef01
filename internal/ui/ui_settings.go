package ui

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/tartampluch/go-lunar-birthday/internal/config"
	"github.com/zalando/go-keyring"
)

// settingsWidgets holds references to UI elements to simplify data retrieval during save.
type settingsWidgets struct {
	langSelect   *widget.Select
	modeSelect   *widget.Select
	urlEntry     *widget.Entry
	userEntry    *widget.Entry
	passEntry    *widget.Entry
	pathEntry    *widget.Entry
	entryPort    *NumericalEntry
	checkExact   *widget.Check
	checkConvert *widget.Check
}

// portValidator accepts a TCP port in the user range.
func (app *LunarBirthdayApp) portValidator(s string) error {
	if s == "" {
		return errors.New(app.GetMsg(config.TKeyErrPortReq))
	}
	port, err := strconv.Atoi(s)
	if err != nil {
		return errors.New(app.GetMsg(config.TKeyErrPortNum))
	}
	if port < config.MinPort || port > config.MaxPort {
		return errors.New(app.GetMsg(config.TKeyErrPortRange))
	}
	return nil
}

// newSettingsWidgets builds the settings fields pre-filled from preferences.
func (app *LunarBirthdayApp) newSettingsWidgets() *settingsWidgets {
	sw := &settingsWidgets{}

	sw.langSelect = widget.NewSelect(app.SupportedLanguages, nil)
	sw.langSelect.SetSelected(app.Preferences.StringWithFallback(config.PrefLanguage, config.DefaultLanguage))

	sw.modeSelect = widget.NewSelect([]string{
		app.GetMsg(config.TKeyModeCardDAV),
		app.GetMsg(config.TKeyModeLocal),
	}, nil)

	sw.urlEntry = widget.NewEntry()
	sw.urlEntry.SetText(app.Preferences.String(config.PrefCardDAVURL))
	sw.urlEntry.PlaceHolder = config.PlaceholderURL

	sw.userEntry = widget.NewEntry()
	sw.userEntry.SetText(app.Preferences.String(config.PrefUsername))

	sw.passEntry = widget.NewPasswordEntry()
	if user := sw.userEntry.Text; user != "" {
		if pwd, err := keyring.Get(config.KeyringService, user); err == nil {
			sw.passEntry.SetText(pwd)
		}
	}

	sw.pathEntry = widget.NewEntry()
	sw.pathEntry.SetText(app.Preferences.String(config.PrefLocalPath))

	sw.entryPort = NewNumericalEntry()
	sw.entryPort.SetText(app.Preferences.StringWithFallback(config.PrefServerPort, config.DefaultPort))
	sw.entryPort.Validator = app.portValidator

	sw.checkExact = widget.NewCheck(app.GetMsg(config.TKeyLblExact), nil)
	sw.checkExact.Checked = app.Preferences.BoolWithFallback(config.PrefExactAlarms, config.DefaultExactAlarms)

	sw.checkConvert = widget.NewCheck(app.GetMsg(config.TKeyLblConvert), nil)
	sw.checkConvert.Checked = app.Preferences.Bool(config.PrefConvertSolar)

	return sw
}

// ShowSettingsWindow displays the configuration dialog allowing users to manage settings.
func (app *LunarBirthdayApp) ShowSettingsWindow() {
	if app.Window != nil {
		slog.Debug(config.MsgFocusWindow, config.LogKeyComponent, config.CompUISet)
		app.Window.RequestFocus()
		return
	}

	slog.Info(config.MsgOpenSettings, config.LogKeyComponent, config.CompUISet)
	w := app.App.NewWindow(app.GetMsg(config.TKeyWinTitle))
	app.Window = w

	sw := app.newSettingsWidgets()

	var refreshLayout func()
	onLayoutChange := func() {
		if refreshLayout != nil {
			refreshLayout()
		}
	}

	sourceCard := app.buildSourceCard(w, sw, onLayoutChange)

	itemLang := widget.NewFormItem(app.GetMsg(config.TKeyLblLanguage), sw.langSelect)
	itemLang.HintText = app.GetMsg(config.TKeyHelpLanguage)

	itemPort := widget.NewFormItem(app.GetMsg(config.TKeyLblPort), sw.entryPort)
	itemPort.HintText = app.GetMsg(config.TKeyHelpPort)

	generalForm := widget.NewForm(itemLang, itemPort)
	generalCard := widget.NewCard(app.GetMsg(config.TKeyLblGeneral), "",
		container.NewVBox(generalForm, sw.checkExact))

	btnSave := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnSave), theme.DocumentSaveIcon(), func() {
		if err := sw.entryPort.Validate(); err != nil {
			dialog.ShowError(err, w)
			return
		}
		app.saveSettings(sw)
		w.Close()
	})
	btnSave.Importance = widget.HighImportance
	btnCancel := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnCancel), theme.CancelIcon(), func() { w.Close() })

	footerLabel := widget.NewLabel(fmt.Sprintf(app.GetMsg(config.TKeyLblFooter), config.Version))
	footerLabel.Alignment = fyne.TextAlignCenter
	footerLabel.TextStyle = fyne.TextStyle{Italic: true}

	paddedContent := container.NewPadded(container.NewVBox(
		sourceCard,
		generalCard,
		container.NewGridWithColumns(config.LayoutColumnsDouble, btnCancel, btnSave),
		footerLabel,
	))

	refreshLayout = func() {
		paddedContent.Refresh()
		minSize := paddedContent.MinSize()
		w.Resize(fyne.NewSize(config.SettingsWindowWidth, minSize.Height))
	}

	w.SetContent(paddedContent)
	w.SetFixedSize(true)
	w.SetOnClosed(func() { app.Window = nil })

	refreshLayout()
	w.Show()
}

// buildSourceCard constructs the address book selection UI and its import button.
func (app *LunarBirthdayApp) buildSourceCard(w fyne.Window, sw *settingsWidgets, onLayoutChange func()) *widget.Card {
	browseBtn := widget.NewButton(app.GetMsg(config.TKeyBtnBrowse), func() {
		d := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
			if err == nil && r != nil {
				sw.pathEntry.SetText(r.URI().Path())
				_ = r.Close()
			}
		}, w)
		d.SetFilter(storage.NewExtensionFileFilter([]string{config.ExtVCF, config.ExtVCard}))
		d.Show()
	})

	itemURL := widget.NewFormItem(app.GetMsg(config.TKeyLblURL), sw.urlEntry)
	itemURL.HintText = app.GetMsg(config.TKeyHelpURL)
	webForm := widget.NewForm(
		itemURL,
		widget.NewFormItem(app.GetMsg(config.TKeyLblUser), sw.userEntry),
		widget.NewFormItem(app.GetMsg(config.TKeyLblPass), sw.passEntry),
	)

	localForm := container.NewBorder(nil, nil, nil, browseBtn, sw.pathEntry)

	applyVis := func(mode string) {
		if mode == app.GetMsg(config.TKeyModeLocal) {
			webForm.Hide()
			localForm.Show()
		} else {
			webForm.Show()
			localForm.Hide()
		}
	}
	sw.modeSelect.OnChanged = func(mode string) {
		applyVis(mode)
		if onLayoutChange != nil {
			onLayoutChange()
		}
	}

	if app.Preferences.StringWithFallback(config.PrefSourceMode, config.SourceModeLocal) == config.SourceModeLocal {
		sw.modeSelect.SetSelected(app.GetMsg(config.TKeyModeLocal))
	} else {
		sw.modeSelect.SetSelected(app.GetMsg(config.TKeyModeCardDAV))
	}
	applyVis(sw.modeSelect.Selected)

	// Import persists the source first so the importer reads what is on screen.
	importBtn := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnImport), theme.DownloadIcon(), func() {
		app.persistSource(sw)
		go app.performImport(true)
	})

	return widget.NewCard(app.GetMsg(config.TKeyLblSource), "",
		container.NewVBox(sw.modeSelect, webForm, localForm, sw.checkConvert, importBtn))
}

// persistSource stores the address book fields and the password.
func (app *LunarBirthdayApp) persistSource(sw *settingsWidgets) {
	modeMap := map[string]string{
		app.GetMsg(config.TKeyModeCardDAV): config.SourceModeWeb,
		app.GetMsg(config.TKeyModeLocal):   config.SourceModeLocal,
	}

	mode, ok := modeMap[sw.modeSelect.Selected]
	if !ok {
		mode = config.SourceModeLocal
	}
	app.Preferences.SetString(config.PrefSourceMode, mode)
	app.Preferences.SetString(config.PrefCardDAVURL, sw.urlEntry.Text)
	app.Preferences.SetString(config.PrefUsername, sw.userEntry.Text)
	app.Preferences.SetString(config.PrefLocalPath, sw.pathEntry.Text)
	app.Preferences.SetBool(config.PrefConvertSolar, sw.checkConvert.Checked)

	if sw.userEntry.Text != "" && sw.passEntry.Text != "" {
		if err := keyring.Set(config.KeyringService, sw.userEntry.Text, sw.passEntry.Text); err != nil {
			slog.Error(config.MsgKeyringSave, config.LogKeyError, err, config.LogKeyComponent, config.CompUISet)
		}
	}
}

// saveSettings persists every field, then relocalizes and rebuilds the reminders
// so their texts follow the language.
func (app *LunarBirthdayApp) saveSettings(sw *settingsWidgets) {
	slog.Info(config.MsgSavingPrefs, config.LogKeyComponent, config.CompUISet)

	app.persistSource(sw)
	app.Preferences.SetString(config.PrefLanguage, sw.langSelect.Selected)
	if sw.entryPort.Text != "" {
		app.Preferences.SetString(config.PrefServerPort, sw.entryPort.Text)
	}
	app.Preferences.SetBool(config.PrefExactAlarms, sw.checkExact.Checked)

	app.UpdateLocalizer()
	app.RefreshTrayMenu()
	app.reconcile(config.PrefLanguage)
}
