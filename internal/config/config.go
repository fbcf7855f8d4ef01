package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Build variables are injected via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies the HTTP client.
var UserAgent = "Go-Lunar-Birthday/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName           = "Go Lunar Birthday"
	AppID             = "com.github.tartampluch.go-lunar-birthday"
	KeyringService    = "com.github.tartampluch.go-lunar-birthday"
	LocalhostBindAddr = "127.0.0.1"
	LogFileName       = "app.log"
	IconFile          = "Icon.png"
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// -----------------------------------------------------------------------------
// System & File Permissions
// -----------------------------------------------------------------------------

const (
	// FilePermUserRW represents -rw------- (Read/Write for owner only).
	FilePermUserRW fs.FileMode = 0600

	// DirPermUserRWX represents drwx------ (Read/Write/Exec for owner only).
	DirPermUserRWX fs.FileMode = 0700

	// ChannelBufferSize defines the standard buffer size for internal signaling channels.
	ChannelBufferSize = 1
)

// -----------------------------------------------------------------------------
// CLI Flags & Descriptions
// -----------------------------------------------------------------------------

const (
	FlagVersion         = "version"
	FlagDebug           = "debug"
	FlagLogFile         = "log-file"
	FlagNoReconcile     = "no-reconcile"
	FlagPort            = "port"
	FlagDescVersion     = "Show application version and exit"
	FlagDescDebug       = "Enable debug logging"
	FlagDescLogFile     = "Log file path (default: app.log in the user cache dir, \"-\" for stdout only)"
	FlagDescNoReconcile = "Do not rebuild reminder timers at startup"
	FlagDescPort        = "Calendar feed port for this run, overrides the saved setting"
	LogFileStdoutOnly   = "-"
	MsgVersionOutput    = "%s version %s (%s/%s)\n"
)

// -----------------------------------------------------------------------------
// Preferences
// -----------------------------------------------------------------------------

const (
	PrefLanguage     = "language"
	PrefServerPort   = "server_port"
	PrefExactAlarms  = "exact_alarms"
	PrefSourceMode   = "source_mode"
	PrefLocalPath    = "local_path"
	PrefCardDAVURL   = "carddav_url"
	PrefUsername     = "username"
	PrefConvertSolar = "convert_solar_bday"
	PrefLastRun      = "last_run_version"
)

// SupportedLanguages defines the list of available UI languages.
var SupportedLanguages = []string{"en", "zh-TW"}

// -----------------------------------------------------------------------------
// Reminder Store
// -----------------------------------------------------------------------------

const (
	// StoreNamespace and StoreKeyList form the single preference slot holding
	// the serialized record list.
	StoreNamespace = "birthday_prefs"
	StoreKeyList   = "birthday_list"
	StoreKey       = StoreNamespace + "." + StoreKeyList

	// JSON field names of a persisted record. JSONFieldLegacyOffsets is the
	// name older data used for the offsets list.
	JSONFieldID            = "id"
	JSONFieldName          = "name"
	JSONFieldLunarMonth    = "lunarMonth"
	JSONFieldLunarDay      = "lunarDay"
	JSONFieldOffsets       = "remindOffsets"
	JSONFieldLegacyOffsets = "remindList"
	JSONFieldHours         = "remindHours"
)

// -----------------------------------------------------------------------------
// Reminder Domain
// -----------------------------------------------------------------------------

const (
	DefaultRemindOffset = 1
	DefaultRemindHour   = 9

	MinLunarMonth = 1
	MaxLunarMonth = 12
	MinLunarDay   = 1
	MaxLunarDay   = 30

	MinHour = 0
	MaxHour = 23

	// MaxOffsetDays bounds both the planner and the cancellation sweep.
	// Codes for offsets above it could never be cancelled, so they are never registered.
	MaxOffsetDays = 30

	// Request code digit budget:
	//   (id mod RequestCodeIDModulus) + offset*RequestCodeOffsetBand + hour*RequestCodeHourBand
	RequestCodeIDModulus  = 100000
	RequestCodeOffsetBand = 100000
	RequestCodeHourBand   = 100

	// Day part boundaries (hour of day) used in reminder messages.
	MorningStartHour   = 5
	AfternoonStartHour = 12
	EveningStartHour   = 18

	// MaxIDBumps limits the creation-time search for a collision-free record id.
	MaxIDBumps = RequestCodeIDModulus
)

// OffsetOptions and HourOptions are the choices offered by the add form.
var (
	OffsetOptions = []int{0, 1, 2, 3, 7, 14, 30}
	HourOptions   = []int{9, 14, 19}
)

// -----------------------------------------------------------------------------
// Alarm Timer Table & Background Jobs
// -----------------------------------------------------------------------------

const (
	// TimerResolution is the wall-clock polling period of the timer table.
	TimerResolution = 1 * time.Second

	// InexactWindow is the batching window used when exact alarms are not allowed.
	InexactWindow = 10 * time.Minute

	// CronDailyReconcile re-plans every record shortly after midnight.
	CronDailyReconcile = "5 0 * * *"

	DefaultExactAlarms = true
)

// -----------------------------------------------------------------------------
// UI Constants
// -----------------------------------------------------------------------------

const (
	SettingsWindowWidth = 600
	AddWindowWidth      = 460

	BirthdaysWinWidth  = 640
	BirthdaysWinHeight = 420

	// Table Column IDs
	ColIDName     = 0
	ColIDLunar    = 1
	ColIDNext     = 2
	ColIDDaysLeft = 3
	ColCount      = 4

	ColWidthName     = 200
	ColWidthLunar    = 140
	ColWidthNext     = 150
	ColWidthDaysLeft = 110

	DateFormatDisplay = "2006-01-02"
	TablePlaceholder  = "Cell Content"
	LunarDateFormat   = "%d/%d"
	HourLabelFormat   = "%02d:00"
	LogMsgOpenWin     = "Opening Birthdays Window"
	LogMsgSorted      = "Birthdays sorted"

	LayoutColumnsDouble = 2
	LayoutColumnsTriple = 3
	LayoutColumnsOffset = 4

	SortIconAsc  = " ▲"
	SortIconDesc = " ▼"
)

// -----------------------------------------------------------------------------
// Translation Keys (I18n)
// -----------------------------------------------------------------------------

const (
	TKeyWinTitle       = "win_title"
	TKeyWinBirthdays   = "win_birthdays_title"
	TKeyWinAdd         = "win_add_title"
	TKeyWinEdit        = "win_edit_title"
	TKeyMenuBirthdays  = "menu_birthdays"
	TKeyMenuAdd        = "menu_add"
	TKeyMenuSettings   = "menu_settings"
	TKeyTrayStatus     = "tray_status"      // Requires Count > 0
	TKeyTrayStatusZero = "tray_status_zero" // Explicit key for 0
	TKeyNotifImportOK  = "notif_import_success"
	TKeyNotifImportErr = "notif_err_import"
	TKeyModeCardDAV    = "mode_carddav"
	TKeyModeLocal      = "mode_local"
	TKeyLblLanguage    = "lbl_language"
	TKeyHelpLanguage   = "help_language"
	TKeyLblPort        = "lbl_server_port"
	TKeyHelpPort       = "help_port"
	TKeyLblGeneral     = "lbl_general"
	TKeyLblExact       = "lbl_exact_alarms"
	TKeyLblConvert     = "lbl_convert_solar"
	TKeyBtnSave        = "btn_save"
	TKeyBtnCancel      = "btn_cancel"
	TKeyBtnDelete      = "btn_delete"
	TKeyBtnEdit        = "btn_edit"
	TKeyBtnImport      = "btn_import"
	TKeyBtnBrowse      = "btn_browse"
	TKeyLblFooter      = "lbl_footer"
	TKeyLblURL         = "lbl_url"
	TKeyHelpURL        = "help_carddav_url"
	TKeyLblUser        = "lbl_user"
	TKeyLblPass        = "lbl_pass"
	TKeyLblSource      = "lbl_source"
	TKeyLblName        = "lbl_name"
	TKeyLblLunarMonth  = "lbl_lunar_month"
	TKeyLblLunarDay    = "lbl_lunar_day"
	TKeyLblOffsets     = "lbl_remind_offsets"
	TKeyLblHours       = "lbl_remind_hours"
	TKeyOffsetSameDay  = "offset_same_day"
	TKeyOffsetDays     = "offset_days" // Requires Days
	TKeyLblReminders   = "lbl_reminders"
	TKeyConfirmDelete  = "confirm_delete" // Requires Name
	TKeyDaysLeft       = "days_left"      // Requires Count
	TKeyDaysLeftToday  = "days_left_today"

	// Reminder messages
	TKeyMsgToday     = "msg_today"     // Requires Name
	TKeyMsgTomorrow  = "msg_tomorrow"  // Requires Name
	TKeyMsgDays      = "msg_days"      // Requires Name, Days
	TKeyMsgAt        = "msg_at"        // Requires Message, DayPart, Hour
	TKeyDayMorning   = "daypart_morning"
	TKeyDayAfternoon = "daypart_afternoon"
	TKeyDayEvening   = "daypart_evening"
	TKeyNotifTitle   = "notif_title" // Requires Name
	TKeyEvtSummary   = "event_summary"

	// Column Headers & Formats
	TKeyColName     = "col_name"
	TKeyColLunar    = "col_lunar"
	TKeyColNext     = "col_next"
	TKeyColDaysLeft = "col_days_left"
	TKeyFormatDate  = "format_date_short"

	// Validation Errors (UI)
	TKeyErrPortReq   = "err_port_required"
	TKeyErrPortNum   = "err_port_number"
	TKeyErrPortRange = "err_port_range"
	TKeyErrNameReq   = "err_name_required"
	TKeyErrNoOffsets = "err_no_offsets"
	TKeyErrNoHours   = "err_no_hours"
	TKeyErrMonth     = "err_month_range"
	TKeyErrDay       = "err_day_range"
)

// -----------------------------------------------------------------------------
// Default Values
// -----------------------------------------------------------------------------

const (
	SourceModeWeb   = "web"
	SourceModeLocal = "local"
	DefaultPort     = "18081"
	DefaultLanguage = "en"
	UIDSalt         = "go-lunar-birthday-v1-" // Salt for deterministic UID generation
)

// -----------------------------------------------------------------------------
// Standards: iCalendar & vCard
// -----------------------------------------------------------------------------

const (
	ICalVersion   = "2.0"
	ICalProdid    = "-//Go Lunar Birthday//Engine//EN"
	ICalCalName   = "Lunar Birthdays"
	ICalMethod    = "PUBLISH"
	ICalScale     = "GREGORIAN"
	ICalComponent = "VALARM"
	ICalAction    = "DISPLAY"
	ICalDomain    = "golunarbirthday"

	PropUID         = "UID"
	PropSummary     = "SUMMARY"
	PropDTStart     = "DTSTART"
	PropDTStamp     = "DTSTAMP"
	PropRefresh     = "REFRESH-INTERVAL"
	PropAction      = "ACTION"
	PropDescription = "DESCRIPTION"
	PropTrigger     = "TRIGGER"
	PropVersion     = "VERSION"
	PropProdid      = "PRODID"
	PropXWRCalName  = "X-WR-CALNAME"
	PropCalScale    = "CALSCALE"
	PropMethod      = "METHOD"

	ParamValue         = "VALUE"
	ParamValueDateTime = "DATE-TIME"
	ICalUTCFormat      = "20060102T150405Z"

	VCardBDAY       = "BDAY"
	VCardAltBDAY    = "X-ALTBDAY"
	VCardFN         = "FN"
	VCardN          = "N"
	VCardCalScale   = "CALSCALE"
	CalScaleChinese = "chinese"

	DefaultICalRefresh = 1 * time.Hour
)

// -----------------------------------------------------------------------------
// Data Formats, Limits & File Extensions
// -----------------------------------------------------------------------------

const (
	DateFormatFullDash  = "2006-01-02"
	DateFormatFullBasic = "20060102"
	DateFormatRFC3339   = time.RFC3339
	DateFormatFullT     = "2006-01-02T15:04:05Z"
	DateFormatNoYearD   = "--01-02"
	DateFormatNoYearB   = "--0102"

	// DefaultLeapYear anchors year-less dates so that --02-29 parses.
	DefaultLeapYear = 2000

	MinPort = 1
	MaxPort = 65535

	UIDHashLength   = 16
	FormatHashInput = "%d|%s"
	FormatUID       = "%s-%d@%s"

	ExtVCF   = ".vcf"
	ExtVCard = ".vcard"
)

// -----------------------------------------------------------------------------
// Network & Timeouts
// -----------------------------------------------------------------------------

const (
	HTTPTimeout         = 30 * time.Second
	ShutdownTimeout     = 5 * time.Second
	ServerReadTimeout   = 10 * time.Second
	ServerWriteTimeout  = 30 * time.Second
	ServerIdleTimeout   = 60 * time.Second
	RetryAfterSeconds   = "10"
	AllowedMethods      = "GET, HEAD"
	MaxHTTPResponseSize = 64 * 1024 * 1024 // 64MB
	SchemeHTTP          = "http"
	SchemeHTTPS         = "https"
	RouteRoot           = "/"
	RouteFeed           = "/birthdays.ics"
	RouteUpcoming       = "/upcoming.json"
	AddrSeparator       = ":"
)

// -----------------------------------------------------------------------------
// HTTP Headers & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderContentType     = "Content-Type"
	HeaderCacheControl    = "Cache-Control"
	HeaderETag            = "ETag"
	HeaderLastModified    = "Last-Modified"
	HeaderRetryAfter      = "Retry-After"
	HeaderAllow           = "Allow"
	HeaderXContentType    = "X-Content-Type-Options"
	HeaderUserAgent       = "User-Agent"
	HeaderIfNoneMatch     = "If-None-Match"
	HeaderIfModifiedSince = "If-Modified-Since"
	HeaderAccept          = "Accept"

	MimeTextCalendar    = "text/calendar; charset=utf-8"
	MimeJSON            = "application/json; charset=utf-8"
	MimeNoSniff         = "nosniff"
	CacheControlPrivate = "private, no-cache"
	AcceptVCard         = "text/vcard, text/x-vcard;q=0.9, text/directory;q=0.8"

	FormatETag = `"%s"`
)

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	ErrLocalPathEmpty   = "configuration error: local path is empty"
	ErrWebURLEmpty      = "configuration error: web URL is empty"
	ErrFetcherMissing   = "internal error: network fetcher is not initialized"
	ErrModeUnsupport    = "configuration error: unsupported source mode"
	ErrServerStartup    = "server startup failed"
	ErrServerShutdown   = "server shutdown failed"
	ErrPortRequired     = "server port is required"
	ErrPortNumber       = "server port must be a number"
	ErrPortRange        = "server port must be between 1 and 65535"
	ErrInvalidURL       = "invalid URL structure"
	ErrProtocol         = "unsupported protocol scheme (http/https only)"
	ErrVCardParse       = "failed to parse vCard stream"
	ErrICalEncode       = "failed to encode iCalendar data"
	ErrDateParse        = "unable to parse date"
	ErrLogFile          = "failed to open log file"
	ErrCacheDir         = "could not determine user cache dir"
	ErrCreateDir        = "could not create app cache dir"
	ErrAppFailed        = "application failed unexpectedly"
	ErrWriteResp        = "failed to write response body"
	ErrJSONEncode       = "failed to encode upcoming birthdays"
	ErrLocalesAccess    = "failed to access embedded locales"
	ErrLocaleLoad       = "failed to load locale file"
	ErrTrayNotSupported = "system tray not supported on this platform/driver"
	ErrLocNotInit       = "localizer not initialized"
	ErrStoreEncode      = "failed to encode birthday records"
	ErrStoreDecode      = "stored birthday records are unreadable"
	ErrNameRequired     = "birthday name is required"
	ErrMonthRange       = "lunar month must be between 1 and 12"
	ErrDayRange         = "lunar day must be between 1 and 30"
	ErrRecordNotFound   = "birthday record not found"
	ErrIDExhausted      = "no collision-free record id available"
	ErrProviderPanic    = "lunar provider failed"
	ErrCronRegister     = "failed to register daily reconcile job"
	ErrFetchRequest     = "failed to create request"
	ErrFetchNetwork     = "network error during fetch"
	ErrFetchStatus      = "server returned unexpected status"
	ErrFetchRead        = "failed to read address book"
	ErrImport           = "birthday import failed"
)

// -----------------------------------------------------------------------------
// HTTP Server Responses
// -----------------------------------------------------------------------------

const (
	HTTPMsgInitializing = "Calendar initializing, please try again shortly."
	HTTPMsgMethodNotAll = "Method Not Allowed"
)

// -----------------------------------------------------------------------------
// Fallbacks & Defaults
// -----------------------------------------------------------------------------

const (
	FallbackMsgToday    = "Today is %s's lunar birthday!"
	FallbackMsgTomorrow = "Tomorrow is %s's lunar birthday"
	FallbackMsgDays     = "%[2]d days until %[1]s's lunar birthday"
	FallbackMsgAt       = "%s (%s %d:00 reminder)"
	FallbackMorning     = "morning"
	FallbackAfternoon   = "afternoon"
	FallbackEvening     = "evening"

	FallbackNotifName    = "friend"
	FallbackNotifMessage = "A lunar birthday is coming up!"
	FallbackNotifTitle   = "🎂 %s lunar birthday"

	FallbackSummary     = "Lunar birthday: %s"
	FallbackTrayDefault = "Go Lunar Birthday (%d upcoming)"
	FallbackTrayLabel   = "Go Lunar Birthday"
	FallbackName        = "Unknown"

	// StubVCalendar is the minimal valid iCalendar object used when no events are found.
	StubVCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:" + ICalProdid + "\r\nEND:VCALENDAR\r\n"

	FormatLunarDescription = "%s年 %s月%s (%d/%d)"
	FormatZodiac           = "生肖%s"
	AlmanacSeparator       = " · "

	TitleStartupError = "Startup Error"
	TitleImportError  = "Import Error"

	MsgPortBusy        = "Port %s is busy or unavailable."
	MsgWorkerStart     = "Daily reconcile job registered"
	MsgWorkerStop      = "Daily reconcile job stopped"
	MsgAppStop         = "Application stopped gracefully"
	MsgCtxCancel       = "Context cancelled, shutting down UI"
	MsgSkippedCard     = "Skipping malformed vCard"
	MsgSkippedDate     = "Skipping invalid date format"
	MsgGenSuccess      = "Calendar generation successful"
	MsgAppStarting     = "Starting application"
	MsgServerListen    = "HTTP server listening"
	MsgServerStop      = "Shutting down HTTP server..."
	MsgCacheUpdated    = "Calendar cache updated"
	MsgLocaleSkip      = "Skipping non-locale file"
	MsgLocaleBadName   = "Skipping malformed locale filename"
	MsgLocaleLoaded    = "Locale loaded successfully"
	MsgTransMissing    = "Missing translation key"
	MsgPassFail        = "Password retrieval failed (might be empty)"
	MsgLogWarning      = "Warning: %s at %s: %v\n"
	MsgPlanSkipOffset  = "Skipping reminder offset outside sweep bounds"
	MsgPlanSkipHour    = "Skipping reminder hour outside 0-23"
	MsgPlanExpired     = "Skipping expired reminder"
	MsgScheduled       = "Reminder scheduled"
	MsgScheduledInex   = "Exact alarms unavailable, scheduling inexact reminder"
	MsgCancelSweep     = "Cancelled reminder sweep"
	MsgReconciled      = "Reminders reconciled"
	MsgTimerFired      = "Reminder timer fired"
	MsgStoreLoaded     = "Birthday records loaded"
	MsgStoreSaved      = "Birthday records saved"
	MsgStoreCorrupt    = "Stored birthday records are corrupt, starting empty"
	MsgStoreDropRecord = "Dropping unusable birthday record"
	MsgIDBumped        = "Record id collides with an existing record, bumping"
	MsgProviderClamp   = "Lunar day exceeds month length, clamping"
	MsgProviderPanic   = "Lunar provider panicked, using fallback date"
	MsgNotifSent       = "Birthday notification sent"
	MsgImportStarted   = "Birthday import started"
	MsgImportDone      = "Birthday import finished"
	MsgImportDuplicate = "Skipping already known birthday"
	MsgFetchRequest    = "Requesting address book"
	MsgFetchStatus     = "Address book server returned error status"
	MsgFetchDone       = "Address book downloaded"
	MsgFetchUnchanged  = "Address book unchanged, reusing cached copy"
	MsgPortInvalid     = "Stored feed port is invalid, using default"
	MsgOpenSettings    = "Opening settings window"
	MsgOpenAdd         = "Opening add birthday window"
	MsgOpenEdit        = "Opening edit birthday window"
	MsgFocusWindow     = "Window already open, requesting focus"
	MsgSavingPrefs     = "Saving preferences"
	MsgKeyringSave     = "Failed to save credentials to keyring"
	MsgRecordAdded     = "Birthday record added"
	MsgRecordDeleted   = "Birthday record deleted"
	MsgRecordUpdated   = "Birthday record updated"
	MsgReconcileSkip   = "Startup reconcile disabled, timers wait for the next change"
	MsgReconcileReq    = "Reconcile requested"
	MsgExactChanged    = "Exact alarm permission changed"
	MsgFeedFailed      = "Calendar feed generation failed"

	PlaceholderURL = "https://..."
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent = "component"
	LogKeyError     = "error"
	LogKeyURL       = "url"
	LogKeyStatus    = "status_code"
	LogKeyBytes     = "bytes"
	LogKeyFile      = "file"
	LogKeyLevel     = "log_level"
	LogKeyOptions   = "options"
	LogKeyStartup   = "startup_reconcile"
	LogKeyLang      = "lang"
	LogKeyKey       = "key"
	LogKeyPort      = "port"
	LogKeyMode      = "mode"
	LogKeyUser      = "user"
	LogKeySizeBytes = "size_bytes"
	LogKeyETag      = "etag"
	LogKeyValue     = "value"
	LogKeyStats     = "stats"
	LogKeySortCol   = "sort_column"
	LogKeySortAsc   = "sort_asc"
	LogKeyCount     = "count"
	LogKeyName      = "name"
	LogKeyDuration  = "duration_ms"
	LogKeyRecordID  = "record_id"
	LogKeyCode      = "request_code"
	LogKeyFireAt    = "fire_at"
	LogKeyOffset    = "offset_days"
	LogKeyHour      = "hour"
	LogKeyExact     = "exact"
	LogKeyRecords   = "records"
	LogKeyTriggers  = "triggers"
	LogKeyYear      = "lunar_year"
	LogKeyMonth     = "lunar_month"
	LogKeyDay       = "lunar_day"
	LogKeyOldID     = "old_id"
	LogKeyNewID     = "new_id"
	LogKeyImported  = "imported"
	LogKeySkipped   = "skipped"
	LogKeyReason    = "reason"
	LogKeySchedule  = "schedule"

	LogKeyBuild   = "build"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyGoVer   = "go_version"
	LogKeyEnv     = "env"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompUI       = "ui"
	CompUISet    = "ui_settings"
	CompUIAdd    = "ui_add"
	CompEngine   = "engine"
	CompPlanner  = "planner"
	CompLunar    = "lunar"
	CompAlarm    = "alarm"
	CompStore    = "store"
	CompNotify   = "notify"
	CompImporter = "importer"
	CompServer   = "server"
	CompFetcher  = "fetcher"
	CompWorker   = "worker"
	CompMain     = "main"
	CompI18n     = "i18n"
)
