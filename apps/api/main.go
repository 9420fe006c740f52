package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/trezcool/maendeleo/apps/api/echo"
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

	// set up logging
	var appLogger core.Logger
	if conf.Debug {
		zl, err := logsvc.NewZapLogger(conf)
		if err != nil {
			return err
		}
		defer zl.Sync()
		appLogger = zl
	} else {
		std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
		appLogger = logsvc.NewRollbarLogger(std, conf)
	}

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		return err
	}
	defer db.Close()
	if conf.Debug {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}

	// set up services
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

	// start API server
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	app := echoapi.NewServer(&echoapi.Options{
		Conf:            conf,
		Logger:          appLogger,
		Coordinator:     coordinator,
		AssignmentSvc:   assignmentSvc,
		MilestoneSvc:    milestoneSvc,
		NotificationSvc: notificationSvc,
		Shutdown:        func() { shutdown <- syscall.SIGTERM },
	})

	serverErrors := make(chan error, 1)
	go func() {
		appLogger.Info("API server starting", map[string]interface{}{"addr": conf.Server.Addr})
		serverErrors <- app.Start()
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-shutdown:
		appLogger.Info("shutdown started", map[string]interface{}{"signal": sig.String()})
		defer appLogger.Info("shutdown complete", nil)

		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err := app.Stop(ctx); err != nil {
			return err
		}
	}
	return nil
}
