package tui

import (
	"errors"
	"strings"

	"github.com/theirongolddev/cbudget/internal/config"
	"github.com/theirongolddev/cbudget/internal/pipeline"
	"github.com/theirongolddev/cbudget/internal/tui/theme"

	"github.com/charmbracelet/huh"
)

// setupValues are the fields bound to the setup form. The form writes
// through pointers, so the values live on the heap behind the App copy.
type setupValues struct {
	backend   string
	url       string
	remoteKey string
	appID     string
	geminiKey string
	locale    string
	themeName string
}

func newSetupValues(cfg config.Config) *setupValues {
	return &setupValues{
		backend:   cfg.Remote.Backend,
		url:       cfg.Remote.URL,
		remoteKey: cfg.Remote.APIKey,
		appID:     cfg.General.AppID,
		geminiKey: cfg.Analysis.APIKey,
		locale:    cfg.Ingest.Locale,
		themeName: cfg.Appearance.Theme,
	}
}

func newSetupForm(v *setupValues) *huh.Form {
	localOnly := func() bool { return v.backend == config.BackendNone }

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("遠端同步").
				Description("多台電腦共用同一份專案清單").
				Options(
					huh.NewOption("僅本地存檔", config.BackendNone),
					huh.NewOption("HTTP 文件伺服器 (cbudget serve)", config.BackendHTTP),
					huh.NewOption("PostgreSQL", config.BackendPostgres),
				).
				Value(&v.backend),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("伺服器網址或連線字串").
				Placeholder("http://127.0.0.1:8787").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("必填")
					}
					return nil
				}).
				Value(&v.url),
			huh.NewInput().
				Title("API Key").
				Description("可留空，改用 CBUDGET_REMOTE_KEY 環境變數").
				EchoMode(huh.EchoModePassword).
				Value(&v.remoteKey),
			huh.NewInput().
				Title("App ID").
				Description("同一 App ID 的使用者共用資料").
				Value(&v.appID),
		).WithHideFunc(localOnly),
		huh.NewGroup(
			huh.NewInput().
				Title("Gemini API Key").
				Description("用於 AI 分析，可留空").
				EchoMode(huh.EchoModePassword).
				Value(&v.geminiKey),
			huh.NewSelect[string]().
				Title("Excel 欄位語系").
				Options(huh.NewOptions(pipeline.Locales()...)...).
				Value(&v.locale),
			huh.NewSelect[string]().
				Title("配色").
				Options(huh.NewOptions(theme.Names()...)...).
				Value(&v.themeName),
		),
	).WithShowHelp(true)
}

// apply copies the form values onto cfg.
func (v *setupValues) apply(cfg config.Config) config.Config {
	cfg.Remote.Backend = v.backend
	cfg.Remote.URL = strings.TrimSpace(v.url)
	cfg.Remote.APIKey = strings.TrimSpace(v.remoteKey)
	if id := strings.TrimSpace(v.appID); id != "" {
		cfg.General.AppID = id
	}
	cfg.Analysis.APIKey = strings.TrimSpace(v.geminiKey)
	cfg.Ingest.Locale = v.locale
	cfg.Appearance.Theme = v.themeName
	return cfg
}

// RunSetup runs the setup form standalone and returns the edited config.
// The caller saves it.
func RunSetup(cfg config.Config) (config.Config, error) {
	v := newSetupValues(cfg)
	if err := newSetupForm(v).Run(); err != nil {
		return cfg, err
	}
	return v.apply(cfg), nil
}
