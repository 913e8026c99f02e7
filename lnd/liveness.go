package lnd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/ziflex/lecho/v3"
)

// LivenessMonitor polls GetInfo and remembers whether the node answered and
// is synced. The health endpoint reads it instead of calling the node.
type LivenessMonitor struct {
	client LightningClientWrapper
	logger *lecho.Logger
	period time.Duration

	mu      sync.RWMutex
	online  bool
	lastErr error
	info    *NodeInfo
}

func NewLivenessMonitor(client LightningClientWrapper, logger *lecho.Logger, period time.Duration) *LivenessMonitor {
	return &LivenessMonitor{client: client, logger: logger, period: period}
}

func (m *LivenessMonitor) StartLivenessLoop(ctx context.Context) {
	m.Check(ctx)
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

func (m *LivenessMonitor) Check(ctx context.Context) {
	info, err := m.client.GetInfo(ctx)
	//if the context has been canceled, return
	if ctx.Err() == context.Canceled {
		return
	}
	online := err == nil && info.SyncedToChain
	if err == nil && !info.SyncedToChain {
		err = fmt.Errorf("node %s is not synced to chain", info.IdentityPubkey)
	}

	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.lastErr = err
	if info != nil {
		m.info = info
	}
	m.mu.Unlock()

	//log & send notification to Sentry in case the node goes down or comes back
	if changed {
		var message string
		if online {
			message = fmt.Sprintf("Node is online: node id %s", info.IdentityPubkey)
		} else {
			message = fmt.Sprintf("Node is offline: %v", err)
		}
		m.logger.Info(message)
		sentry.CaptureMessage(message)
	}
}

func (m *LivenessMonitor) Status() (online bool, info *NodeInfo, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online, m.info, m.lastErr
}
