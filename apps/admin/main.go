package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/assignment"
	"github.com/trezcool/jifunze/core/user"
	emailsvc "github.com/trezcool/jifunze/services/email"
	logsvc "github.com/trezcool/jifunze/services/logger"
	"github.com/trezcool/jifunze/storage/database"
	mongorepos "github.com/trezcool/jifunze/storage/database/mongodb"
)

var logger *logsvc.RollbarLogger

func main() {
	conf := core.NewConfig()
	logger = logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	// set up DB
	ctx, cancel := context.WithTimeout(context.Background(), conf.Database.ConnectTimeout*3)
	client, err := database.Open(ctx, conf)
	cancel()
	errAndDie(err)
	db := client.Database(conf.Database.Name)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	assignment.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		usrSvc:  user.NewService(mongorepos.NewUserRepository(db), emailsvc.NewConsoleService(logger, conf), validate, conf),
		migrate: func(ctx context.Context) error { return database.Migrate(ctx, db) },
	}
	err = cli.run(os.Args)
	if err != nil && err != errHelp {
		logger.Error("\nerror: "+err.Error(), err)
	}
	disconnect(client)
	logger.Close()
	if err != nil {
		os.Exit(1)
	}
}

func disconnect(client *mongo.Client) {
	if err := client.Disconnect(context.Background()); err != nil {
		logger.Warn("disconnecting from MongoDB: " + err.Error())
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
