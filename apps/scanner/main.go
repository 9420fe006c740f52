// Command scanner runs the deadline scheduler: on every tick it sweeps the
// Active milestones, commits Overdue transitions and dispatches the due
// reminder and overdue notifications. Ticks are idempotent, so overlapping or
// replayed runs are safe.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trezcool/maendeleo/core"
	"github.com/trezcool/maendeleo/core/assignment"
	"github.com/trezcool/maendeleo/core/milestone"
	"github.com/trezcool/maendeleo/core/notification"
	"github.com/trezcool/maendeleo/core/workflow"
	"github.com/trezcool/maendeleo/services/email"
	"github.com/trezcool/maendeleo/services/logger"
	"github.com/trezcool/maendeleo/storage/database"
	"github.com/trezcool/maendeleo/storage/database/sqlx"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	conf, err := core.NewConfig()
	if err != nil {
		return err
	}

	var appLogger core.Logger
	if conf.Debug {
		zl, err := logsvc.NewZapLogger(conf)
		if err != nil {
			return err
		}
		defer zl.Sync()
		appLogger = zl
	} else {
		std := log.New(os.Stdout, "SCANNER : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
		appLogger = logsvc.NewRollbarLogger(std, conf)
	}

	db, err := database.Open(conf)
	if err != nil {
		return err
	}
	defer db.Close()

	clock := core.NewSystemClock()
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, appLogger)
	}

	dir := sqlxrepos.NewDirectory(db)
	assignmentSvc := assignment.NewService(sqlxrepos.NewAssignmentRepository(db), clock)
	milestoneSvc := milestone.NewService(sqlxrepos.NewMilestoneRepository(db), clock)
	notificationSvc := notification.NewService(
		sqlxrepos.NewNotificationRepository(db), clock, dir, mailSvc, conf.Workflow.ReminderCoolDown)
	coordinator := workflow.NewCoordinator(assignmentSvc, milestoneSvc, notificationSvc, dir, clock, appLogger)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	appLogger.Info("deadline scanner starting", map[string]interface{}{"interval": conf.Workflow.ScanInterval.String()})

	ticker := time.NewTicker(conf.Workflow.ScanInterval)
	defer ticker.Stop()

	// sweep once on startup so a crashed or rescheduled scanner catches up
	// without waiting a full interval
	scan(coordinator, clock, appLogger)

	for {
		select {
		case <-ticker.C:
			scan(coordinator, clock, appLogger)
		case sig := <-shutdown:
			appLogger.Info("deadline scanner stopping", map[string]interface{}{"signal": sig.String()})
			return nil
		}
	}
}

func scan(coordinator *workflow.Coordinator, clock core.Clock, logger core.Logger) {
	res, err := coordinator.ScanDeadlines(context.Background(), clock.Now())
	if err != nil {
		logger.Error("deadline scan failed", err)
		return
	}
	logger.Info("deadline scan complete", map[string]interface{}{
		"overdue":       len(res.Milestones),
		"notifications": len(res.Notifications),
	})
}
