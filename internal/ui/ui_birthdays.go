package ui

import (
	"fmt"
	"log/slog"
	"sort"
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

// sortUpcoming orders the list by the given column. Ties fall back to the name.
func sortUpcoming(list []engine.UpcomingBirthday, col int, asc bool) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		var less bool
		switch col {
		case config.ColIDName:
			less = strings.ToLower(a.Record.Name) < strings.ToLower(b.Record.Name)
		case config.ColIDLunar:
			if a.Record.LunarMonth != b.Record.LunarMonth {
				less = a.Record.LunarMonth < b.Record.LunarMonth
			} else if a.Record.LunarDay != b.Record.LunarDay {
				less = a.Record.LunarDay < b.Record.LunarDay
			} else {
				less = a.Record.Name < b.Record.Name
			}
		default: // ColIDNext and ColIDDaysLeft share the same order
			if a.NextOccurrence.Equal(b.NextOccurrence) {
				less = a.Record.Name < b.Record.Name
			} else {
				less = a.NextOccurrence.Before(b.NextOccurrence)
			}
		}

		if !asc {
			return !less
		}
		return less
	})
}

// cellText renders one table cell.
func (app *LunarBirthdayApp) cellText(u engine.UpcomingBirthday, col int) string {
	switch col {
	case config.ColIDName:
		return u.Record.Name
	case config.ColIDLunar:
		return fmt.Sprintf(config.LunarDateFormat, u.Record.LunarMonth, u.Record.LunarDay)
	case config.ColIDNext:
		format := app.GetMsg(config.TKeyFormatDate)
		if format == config.TKeyFormatDate {
			format = config.DateFormatDisplay
		}
		return u.NextOccurrence.Format(format)
	case config.ColIDDaysLeft:
		return app.daysLeftText(u.DaysLeft)
	}
	return ""
}

func (app *LunarBirthdayApp) daysLeftText(days int) string {
	if days == 0 {
		return app.GetMsg(config.TKeyDaysLeftToday)
	}
	text := app.localize(&i18n.LocalizeConfig{
		MessageID:    config.TKeyDaysLeft,
		TemplateData: map[string]interface{}{"Count": days},
		PluralCount:  days,
	})
	if text == "" {
		return fmt.Sprintf("%d", days)
	}
	return text
}

// snapshotUpcoming copies the upcoming list so the window can sort it freely.
func (app *LunarBirthdayApp) snapshotUpcoming() []engine.UpcomingBirthday {
	app.UpcomingMut.RLock()
	defer app.UpcomingMut.RUnlock()
	out := make([]engine.UpcomingBirthday, len(app.Upcoming))
	copy(out, app.Upcoming)
	return out
}

// ShowBirthdaysWindow displays every stored birthday sorted by next occurrence.
// A second call focuses the open window. Header buttons change the sort.
func (app *LunarBirthdayApp) ShowBirthdaysWindow() {
	if app.birthdaysWindow != nil {
		app.birthdaysWindow.RequestFocus()
		return
	}

	app.birthdaysWindow = app.App.NewWindow(app.GetMsg(config.TKeyWinBirthdays))
	app.birthdaysWindow.Resize(fyne.NewSize(config.BirthdaysWinWidth, config.BirthdaysWinHeight))
	w := app.birthdaysWindow

	display := app.snapshotUpcoming()

	slog.Info(config.LogMsgOpenWin,
		config.LogKeyComponent, config.CompUI,
		config.LogKeyCount, len(display))

	currentSortCol := config.ColIDNext
	sortAsc := true
	selected := -1

	var refreshTable func()

	performSort := func() {
		sortUpcoming(display, currentSortCol, sortAsc)
		slog.Debug(config.LogMsgSorted,
			config.LogKeyComponent, config.CompUI,
			config.LogKeySortCol, currentSortCol,
			config.LogKeySortAsc, sortAsc)
	}
	performSort()

	table := widget.NewTable(
		func() (int, int) {
			return len(display), config.ColCount
		},
		func() fyne.CanvasObject {
			return widget.NewLabel(config.TablePlaceholder)
		},
		func(id widget.TableCellID, o fyne.CanvasObject) {
			label := o.(*widget.Label)
			if id.Row >= len(display) {
				return
			}
			label.SetText(app.cellText(display[id.Row], id.Col))
		},
	)

	table.ShowHeaderRow = true
	table.CreateHeader = func() fyne.CanvasObject {
		return widget.NewButton("Header", func() {})
	}
	table.UpdateHeader = func(id widget.TableCellID, o fyne.CanvasObject) {
		btn := o.(*widget.Button)

		var titleKey string
		switch id.Col {
		case config.ColIDName:
			titleKey = config.TKeyColName
		case config.ColIDLunar:
			titleKey = config.TKeyColLunar
		case config.ColIDNext:
			titleKey = config.TKeyColNext
		case config.ColIDDaysLeft:
			titleKey = config.TKeyColDaysLeft
		}

		text := app.GetMsg(titleKey)
		if id.Col == currentSortCol {
			if sortAsc {
				text += config.SortIconAsc
			} else {
				text += config.SortIconDesc
			}
		}
		btn.SetText(text)

		btn.OnTapped = func() {
			if currentSortCol == id.Col {
				sortAsc = !sortAsc
			} else {
				currentSortCol = id.Col
				sortAsc = true
			}
			refreshTable()
		}
	}

	table.SetColumnWidth(config.ColIDName, config.ColWidthName)
	table.SetColumnWidth(config.ColIDLunar, config.ColWidthLunar)
	table.SetColumnWidth(config.ColIDNext, config.ColWidthNext)
	table.SetColumnWidth(config.ColIDDaysLeft, config.ColWidthDaysLeft)

	btnDelete := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnDelete), theme.DeleteIcon(), nil)
	btnDelete.Disable()
	btnEdit := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnEdit), theme.DocumentCreateIcon(), nil)
	btnEdit.Disable()

	table.OnSelected = func(id widget.TableCellID) {
		selected = id.Row
		btnDelete.Enable()
		btnEdit.Enable()
	}
	table.OnUnselected = func(widget.TableCellID) {
		selected = -1
		btnDelete.Disable()
		btnEdit.Disable()
	}

	// reload picks up changes made by the add and edit forms.
	reload := func() {
		display = app.snapshotUpcoming()
		selected = -1
		table.UnselectAll()
		refreshTable()
	}

	btnEdit.OnTapped = func() {
		if selected < 0 || selected >= len(display) {
			return
		}
		app.ShowEditWindow(display[selected].Record, reload)
	}

	btnDelete.OnTapped = func() {
		if selected < 0 || selected >= len(display) {
			return
		}
		record := display[selected].Record
		question := app.localize(&i18n.LocalizeConfig{
			MessageID:    config.TKeyConfirmDelete,
			TemplateData: map[string]interface{}{"Name": record.Name},
		})
		if question == "" {
			question = record.Name
		}
		dialog.ShowConfirm(app.GetMsg(config.TKeyBtnDelete), question, func(ok bool) {
			if !ok {
				return
			}
			if err := app.deleteBirthday(record.ID); err != nil {
				dialog.ShowError(err, w)
				return
			}
			reload()
		}, w)
	}

	btnAdd := widget.NewButtonWithIcon(app.GetMsg(config.TKeyMenuAdd), theme.ContentAddIcon(), func() {
		app.showRecordWindow(nil, reload)
	})

	refreshTable = func() {
		performSort()
		table.Refresh()
	}

	actions := container.NewGridWithColumns(config.LayoutColumnsTriple, btnAdd, btnEdit, btnDelete)
	w.SetContent(container.NewBorder(nil, actions, nil, nil, table))

	w.SetOnClosed(func() {
		app.birthdaysWindow = nil
	})

	w.Show()
}
