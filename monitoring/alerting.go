// Package monitoring provides alerting capabilities for the feed video backend
package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AlertSeverity represents the severity level of an alert
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// AlertType represents the type of alert
type AlertType string

const (
	AlertTypeFeedFailure    AlertType = "feed_failure"
	AlertTypeRenderFailure  AlertType = "render_failure"
	AlertTypeRenderTimeout  AlertType = "render_timeout"
	AlertTypeQueueFull      AlertType = "queue_full"
	AlertTypeStoreError     AlertType = "store_error"
	AlertTypeWebhookAnomaly AlertType = "webhook_anomaly"
	AlertTypeHighErrorRate  AlertType = "high_error_rate"
)

// Alert represents an alert
type Alert struct {
	ID          string                 `json:"id"`
	Type        AlertType              `json:"type"`
	Severity    AlertSeverity          `json:"severity"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Timestamp   time.Time              `json:"timestamp"`
	Labels      map[string]string      `json:"labels"`
	Annotations map[string]interface{} `json:"annotations"`
	Resolved    bool                   `json:"resolved"`
	ResolvedAt  *time.Time             `json:"resolved_at,omitempty"`
}

// AlertRule defines a rule for generating alerts
type AlertRule struct {
	Name        string
	Type        AlertType
	Severity    AlertSeverity
	Condition   func() bool
	Title       string
	Description string
	Labels      map[string]string
	Enabled     bool
	Interval    time.Duration
}

// Notifier interface for sending alert notifications
type Notifier interface {
	Send(alert *Alert) error
	Name() string
}

// LogNotifier sends alerts to the log
type LogNotifier struct {
	logger *logrus.Logger
}

func (n *LogNotifier) Name() string {
	return "log"
}

func (n *LogNotifier) Send(alert *Alert) error {
	level := logrus.InfoLevel
	switch alert.Severity {
	case SeverityHigh:
		level = logrus.WarnLevel
	case SeverityCritical:
		level = logrus.ErrorLevel
	}

	n.logger.WithFields(logrus.Fields{
		"alert_id":    alert.ID,
		"alert_type":  alert.Type,
		"severity":    alert.Severity,
		"labels":      alert.Labels,
		"annotations": alert.Annotations,
	}).Log(level, fmt.Sprintf("ALERT: %s - %s", alert.Title, alert.Description))

	return nil
}

// NewLogNotifier creates a new log notifier
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// AlertManager manages alerts and notifications
type AlertManager struct {
	alerts    map[string]*Alert
	mutex     sync.RWMutex
	logger    *logrus.Logger
	rules     []AlertRule
	notifiers []Notifier
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewAlertManager creates a new alert manager
func NewAlertManager(logger *logrus.Logger) *AlertManager {
	ctx, cancel := context.WithCancel(context.Background())

	am := &AlertManager{
		alerts:    make(map[string]*Alert),
		logger:    logger,
		rules:     getDefaultAlertRules(),
		notifiers: []Notifier{NewLogNotifier(logger)},
		ctx:       ctx,
		cancel:    cancel,
	}

	go am.evaluateRules()

	return am
}

// getDefaultAlertRules returns the default rules for the feed video backend.
// Conditions are placeholders until wired to live metrics.
func getDefaultAlertRules() []AlertRule {
	return []AlertRule{
		{
			Name:        "High Error Rate",
			Type:        AlertTypeHighErrorRate,
			Severity:    SeverityHigh,
			Condition:   func() bool { return false },
			Title:       "High API error rate detected",
			Description: "The HTTP 5xx rate has exceeded threshold",
			Labels:      map[string]string{"service": "feed-video-backend"},
			Enabled:     true,
			Interval:    time.Minute * 5,
		},
		{
			Name:        "Feed Fetch Failures",
			Type:        AlertTypeFeedFailure,
			Severity:    SeverityMedium,
			Condition:   func() bool { return false },
			Title:       "Repeated feed fetch failures",
			Description: "A feed source has failed to fetch or parse repeatedly",
			Labels:      map[string]string{"service": "feed-video-backend"},
			Enabled:     true,
			Interval:    time.Minute * 5,
		},
		{
			Name:        "High Render Failure Rate",
			Type:        AlertTypeRenderFailure,
			Severity:    SeverityHigh,
			Condition:   func() bool { return false },
			Title:       "High render failure rate detected",
			Description: "Cloud render failure rate has exceeded threshold",
			Labels:      map[string]string{"service": "feed-video-backend"},
			Enabled:     true,
			Interval:    time.Minute * 5,
		},
		{
			Name:        "Render Wait Timeouts",
			Type:        AlertTypeRenderTimeout,
			Severity:    SeverityMedium,
			Condition:   func() bool { return false },
			Title:       "Renders timing out",
			Description: "Multiple renders failed to reach a terminal status before the wait deadline",
			Labels:      map[string]string{"service": "feed-video-backend"},
			Enabled:     true,
			Interval:    time.Minute * 5,
		},
		{
			Name:        "Batch Queue Full",
			Type:        AlertTypeQueueFull,
			Severity:    SeverityMedium,
			Condition:   func() bool { return false },
			Title:       "Batch processing queue is full",
			Description: "The batch job queue has reached capacity",
			Labels:      map[string]string{"service": "feed-video-backend"},
			Enabled:     true,
			Interval:    time.Minute * 2,
		},
		{
			Name:        "Tracker Store Errors",
			Type:        AlertTypeStoreError,
			Severity:    SeverityHigh,
			Condition:   func() bool { return false },
			Title:       "Render tracker store failures detected",
			Description: "Multiple tracker store operations have failed",
			Labels:      map[string]string{"service": "feed-video-backend"},
			Enabled:     true,
			Interval:    time.Minute * 3,
		},
		{
			Name:        "Webhook Anomalies",
			Type:        AlertTypeWebhookAnomaly,
			Severity:    SeverityLow,
			Condition:   func() bool { return false },
			Title:       "Unusual webhook traffic",
			Description: "Webhook notifications are arriving for unknown render IDs",
			Labels:      map[string]string{"service": "feed-video-backend"},
			Enabled:     true,
			Interval:    time.Minute * 10,
		},
	}
}

// evaluateRules runs the alert evaluation loop
func (am *AlertManager) evaluateRules() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-am.ctx.Done():
			return
		case <-ticker.C:
			am.evaluateAllRules()
		}
	}
}

func (am *AlertManager) evaluateAllRules() {
	am.mutex.RLock()
	rules := make([]AlertRule, len(am.rules))
	copy(rules, am.rules)
	am.mutex.RUnlock()

	for _, rule := range rules {
		if rule.Enabled && rule.Condition() {
			am.triggerAlert(rule)
		}
	}
}

func (am *AlertManager) triggerAlert(rule AlertRule) {
	alertID := fmt.Sprintf("%s-%d", rule.Type, time.Now().Unix())

	alert := &Alert{
		ID:          alertID,
		Type:        rule.Type,
		Severity:    rule.Severity,
		Title:       rule.Title,
		Description: rule.Description,
		Timestamp:   time.Now(),
		Labels:      rule.Labels,
		Annotations: make(map[string]interface{}),
	}

	am.mutex.Lock()
	// One active alert per type at a time
	for _, existing := range am.alerts {
		if existing.Type == rule.Type && !existing.Resolved {
			am.mutex.Unlock()
			return
		}
	}
	am.alerts[alertID] = alert
	am.mutex.Unlock()

	am.sendNotifications(alert)
}

func (am *AlertManager) sendNotifications(alert *Alert) {
	for _, notifier := range am.notifiers {
		if err := notifier.Send(alert); err != nil {
			am.logger.WithError(err).WithField("notifier", notifier.Name()).Error("Failed to send alert notification")
		}
	}
}

// TriggerManualAlert manually triggers an alert
func (am *AlertManager) TriggerManualAlert(alertType AlertType, severity AlertSeverity, title, description string, labels map[string]string) {
	alertID := fmt.Sprintf("%s-%d", alertType, time.Now().Unix())

	alert := &Alert{
		ID:          alertID,
		Type:        alertType,
		Severity:    severity,
		Title:       title,
		Description: description,
		Timestamp:   time.Now(),
		Labels:      labels,
		Annotations: make(map[string]interface{}),
	}

	am.mutex.Lock()
	am.alerts[alertID] = alert
	am.mutex.Unlock()

	am.sendNotifications(alert)
}

// ResolveAlert resolves an alert
func (am *AlertManager) ResolveAlert(alertID string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	if alert, exists := am.alerts[alertID]; exists {
		now := time.Now()
		alert.Resolved = true
		alert.ResolvedAt = &now

		am.logger.WithFields(logrus.Fields{
			"alert_id": alertID,
			"type":     alert.Type,
		}).Info("Alert resolved")
	}
}

// GetActiveAlerts returns all active (unresolved) alerts
func (am *AlertManager) GetActiveAlerts() []*Alert {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	var active []*Alert
	for _, alert := range am.alerts {
		if !alert.Resolved {
			active = append(active, alert)
		}
	}
	return active
}

// AddNotifier adds a new notifier
func (am *AlertManager) AddNotifier(notifier Notifier) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	am.notifiers = append(am.notifiers, notifier)
}

// UpdateRuleCondition updates the condition function for a rule
func (am *AlertManager) UpdateRuleCondition(ruleName string, condition func() bool) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	for i, rule := range am.rules {
		if rule.Name == ruleName {
			am.rules[i].Condition = condition
			break
		}
	}
}

// Stop stops the alert manager
func (am *AlertManager) Stop() {
	am.cancel()
}
