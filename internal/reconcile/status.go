package reconcile

// Status is the synchronization state shown to the user.
type Status int

const (
	Uninitialized Status = iota
	LocalLoaded
	OfflineCached
	Offline
	Connecting
	Synced
	FeedError
	AuthFailed
	Saving
	Saved
	SavedLocal
	SaveFailed
)

var statusNames = [...]string{
	Uninitialized: "uninitialized",
	LocalLoaded:   "local_loaded",
	OfflineCached: "offline_cached",
	Offline:       "offline",
	Connecting:    "connecting",
	Synced:        "synced",
	FeedError:     "feed_error",
	AuthFailed:    "auth_failed",
	Saving:        "saving",
	Saved:         "saved",
	SavedLocal:    "saved_local",
	SaveFailed:    "save_failed",
}

var statusLabels = [...]string{
	Uninitialized: "初始化中...",
	LocalLoaded:   "載入本地存檔",
	OfflineCached: "本地存檔 (離線)",
	Offline:       "離線模式",
	Connecting:    "雲端連線中...",
	Synced:        "雲端同步中",
	FeedError:     "雲端連線失敗",
	AuthFailed:    "驗證錯誤",
	Saving:        "正在存檔...",
	Saved:         "已完成自動存檔",
	SavedLocal:    "已儲存至本地",
	SaveFailed:    "存檔失敗",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// Label returns the human-readable status line.
func (s Status) Label() string {
	if s < 0 || int(s) >= len(statusLabels) {
		return s.String()
	}
	return statusLabels[s]
}

// Failed reports whether the status describes a failure.
func (s Status) Failed() bool {
	return s == FeedError || s == AuthFailed || s == SaveFailed
}

// settles reports whether reaching s ends the wait for a first remote answer.
func (s Status) settles() bool {
	switch s {
	case Offline, OfflineCached, Synced, FeedError, AuthFailed:
		return true
	}
	return false
}
