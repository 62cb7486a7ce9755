package alerter

import (
	"McastSpectra/internal/config"
	"McastSpectra/internal/model"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// Alerter is responsible for evaluating task snapshots against predefined rules
// and triggering notifications if rules are violated.
type Alerter struct {
	tasks         []model.Task
	rules         []config.AlerterRule
	notifier      model.Notifier
	checkInterval time.Duration
	stopChan      chan struct{}
	wg            sync.WaitGroup
}

// NewAlerter creates a new Alerter instance.
func NewAlerter(cfg *config.AlerterConfig, tasks []model.Task, notifier model.Notifier) (*Alerter, error) {
	interval, err := time.ParseDuration(cfg.CheckInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid check_interval for alerter: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("alerter check_interval must be positive")
	}

	return &Alerter{
		tasks:         tasks,
		rules:         cfg.Rules,
		notifier:      notifier,
		checkInterval: interval,
		stopChan:      make(chan struct{}),
	}, nil
}

// Start begins the periodic evaluation of alert rules in the background.
func (a *Alerter) Start() {
	log.Println("Alerter started")

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ticker := time.NewTicker(a.checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				a.Evaluate()
			case <-a.stopChan:
				return
			}
		}
	}()
}

// Stop gracefully stops the evaluation loop and runs one final evaluation.
func (a *Alerter) Stop() {
	log.Println("Stopping Alerter...")
	close(a.stopChan)
	a.wg.Wait()
	a.Evaluate()
}

// Evaluate checks every task against its rules, sends one consolidated
// notification when anything fired and returns the number of triggered tasks.
func (a *Alerter) Evaluate() int {
	var wg sync.WaitGroup
	resultsChan := make(chan string, len(a.tasks))

	for _, task := range a.tasks {
		var relevantRules []config.AlerterRule
		for _, rule := range a.rules {
			if rule.TaskName == task.Name() {
				relevantRules = append(relevantRules, rule)
			}
		}
		if len(relevantRules) == 0 {
			continue
		}

		wg.Add(1)
		go func(t model.Task, rules []config.AlerterRule) {
			defer wg.Done()
			if msg := t.AlerterMsg(rules); msg != "" {
				resultsChan <- msg
			}
		}(task, relevantRules)
	}

	wg.Wait()
	close(resultsChan)

	var allMessages []string
	for msg := range resultsChan {
		allMessages = append(allMessages, msg)
	}

	if len(allMessages) == 0 {
		return 0
	}

	log.Printf("Alerter evaluation completed. %d alert(s) triggered.", len(allMessages))

	body := "<h1>McastSpectra Alert Summary</h1>" +
		"<p>The following alerts were triggered during the last check:</p><hr>" +
		strings.Join(allMessages, "<hr>")

	if a.notifier != nil {
		subject := fmt.Sprintf("McastSpectra Alert Summary (%d Triggered)", len(allMessages))
		if err := a.notifier.Send(subject, body); err != nil {
			log.Printf("ERROR: Failed to send consolidated alert notification: %v", err)
		} else {
			log.Printf("INFO: Consolidated alert notification sent successfully.")
		}
	}
	return len(allMessages)
}
