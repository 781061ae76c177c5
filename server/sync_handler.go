package server

import (
	"net/http"
	"sync"

	"musichelper/cache"
	"musichelper/core/chords"
	"musichelper/core/playback"
	"musichelper/logger"
	"musichelper/model"

	"github.com/gorilla/websocket"
)

var syncUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许跨域连接
	},
}

// wsPlayer adapts a websocket client into a playback source: the client
// streams state snapshots in, seek commands go back out over the same
// connection.
type wsPlayer struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	stateMu sync.Mutex
	state   playback.PlayerState
}

func (p *wsPlayer) State() playback.PlayerState {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.state
}

func (p *wsPlayer) setState(state playback.PlayerState) {
	p.stateMu.Lock()
	p.state = state
	p.stateMu.Unlock()
}

func (p *wsPlayer) setPosition(seconds float64) {
	p.stateMu.Lock()
	p.state.Position = &seconds
	p.stateMu.Unlock()
}

func (p *wsPlayer) Seek(seconds float64) error {
	return p.writeJSON(map[string]interface{}{
		"type": "seek",
		"time": seconds,
	})
}

func (p *wsPlayer) writeJSON(v interface{}) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.conn.WriteJSON(v)
}

// syncClientMessage is the envelope for everything the client sends.
type syncClientMessage struct {
	Type     string                `json:"type"`
	State    *playback.PlayerState `json:"state,omitempty"`
	Position *float64              `json:"position,omitempty"`
	Time     *float64              `json:"time,omitempty"`
}

// ChordSyncHandler runs a per-connection chord synchronizer: the client
// reports playback state over the websocket and receives chord change
// events whenever the active chord moves.
func (h *APIHandler) ChordSyncHandler(w http.ResponseWriter, r *http.Request) {
	upload, principal, err := h.uploadFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !principal.CanAccess(upload.UserID) {
		writeError(w, model.ErrPermission)
		return
	}

	timeline, err := cache.GetChordTimeline(r.Context(), upload.ID)
	if err != nil {
		logger.Warn("读取时间轴缓存失败", logger.Int64("uploadId", upload.ID), logger.ErrorField(err))
	}
	if timeline == nil {
		timeline, err = chords.Load(h.pipeline.ProcessedDir(upload.ID))
		if err != nil {
			writeError(w, err)
			return
		}
	}
	if timeline == nil || len(timeline.Events) == 0 {
		writeError(w, model.ErrNotFound)
		return
	}

	conn, err := syncUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket升级失败", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	logger.Info("和弦同步连接建立",
		logger.Int64("uploadId", upload.ID),
		logger.Int64("userId", principal.UserID))

	player := &wsPlayer{conn: conn}
	synchronizer := playback.NewSynchronizer(h.cfg.SyncPollInterval, func(change playback.ChordChange) {
		msg := map[string]interface{}{
			"type":     "chord",
			"index":    change.Index,
			"previous": change.Previous,
			"current":  change.Current,
			"next":     change.Next,
		}
		if err := player.writeJSON(msg); err != nil {
			logger.Warn("推送和弦变化失败", logger.Int64("uploadId", upload.ID), logger.ErrorField(err))
		}
	})
	synchronizer.Attach(player)
	synchronizer.SetTimeline(timeline)
	synchronizer.Start()
	defer synchronizer.Stop()

	for {
		var msg syncClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("和弦同步连接异常断开", logger.ErrorField(err))
			}
			return
		}

		switch msg.Type {
		case "state":
			if msg.State != nil {
				player.setState(*msg.State)
			}
		case "position":
			if msg.Position != nil {
				player.setPosition(*msg.Position)
			}
		case "seek":
			if msg.Time != nil {
				synchronizer.Seek(*msg.Time)
			}
		default:
			logger.Debug("忽略未知的同步消息类型", logger.String("type", msg.Type))
		}
	}
}
