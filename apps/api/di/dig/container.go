package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/jifunze/apps/api/echo"
	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/assignment"
	"github.com/trezcool/jifunze/core/upload"
	"github.com/trezcool/jifunze/core/user"
	emailsvc "github.com/trezcool/jifunze/services/email"
	logsvc "github.com/trezcool/jifunze/services/logger"
	"github.com/trezcool/jifunze/services/metrics"
	"github.com/trezcool/jifunze/services/ratelimit"
	"github.com/trezcool/jifunze/storage/database"
	inmemdb "github.com/trezcool/jifunze/storage/database/inmem"
	mongorepos "github.com/trezcool/jifunze/storage/database/mongodb"
	"github.com/trezcool/jifunze/storage/files"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Repositories are backed by MongoDB, or by memory when no database is configured in debug mode.
	Repositories struct {
		dig.Out
		Users       user.Repository
		Assignments assignment.Repository
	}
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

// newMongoClient returns nil when MONGODB_URI is missing in debug mode.
func newMongoClient(conf *core.Config, loggerParam DBLoggerParam) *mongo.Client {
	logger := loggerParam.Logger
	if conf.Database.URI == "" {
		if conf.Debug {
			logger.Warn("MONGODB_URI is not set: using an in-memory database, data will not survive restarts")
			return nil
		}
		logger.Fatal("MONGODB_URI is not set: cannot start without a database")
	}

	setUp := func() (*mongo.Client, error) {
		ctx, cancel := context.WithTimeout(context.Background(), conf.Database.ConnectTimeout*3)
		defer cancel()

		client, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(ctx, client.Database(conf.Database.Name)); err != nil {
			return nil, err
		}
		return client, nil
	}

	client, err := setUp()
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return client
}

func newRepositories(conf *core.Config, client *mongo.Client) Repositories {
	if client == nil {
		db := inmemdb.Open()
		return Repositories{
			Users:       inmemdb.NewUserRepository(db),
			Assignments: inmemdb.NewAssignmentRepository(db),
		}
	}
	db := client.Database(conf.Database.Name)
	return Repositories{
		Users:       mongorepos.NewUserRepository(db),
		Assignments: mongorepos.NewAssignmentRepository(db),
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(logger, conf)
	}
	return emailsvc.NewSendgridService(logger, conf)
}

func newValidator(logger core.Logger) (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	assignment.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger)
	return validate, translator
}

// newFileStore returns nil when no storage provider is configured: uploads then answer 503.
func newFileStore(conf *core.Config, logger core.Logger) upload.FileStore {
	ctx, cancel := context.WithTimeout(context.Background(), conf.Database.ConnectTimeout)
	defer cancel()

	store, err := files.New(ctx, conf)
	if err != nil {
		logger.Error(fmt.Sprintf("setting up file storage: %v", err), err)
		return nil
	}
	if store == nil {
		logger.Warn("file storage is not configured: uploads are disabled")
	}
	return store
}

// newLimiter returns nil when REDIS_URL is missing: auth endpoints are then not rate limited.
func newLimiter(conf *core.Config, logger core.Logger) *ratelimit.Limiter {
	if conf.Redis.URL == "" {
		logger.Warn("REDIS_URL is not set: rate limiting is disabled")
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), conf.Database.ConnectTimeout)
	defer cancel()

	rdb, err := ratelimit.Open(ctx, conf.Redis.URL)
	if err != nil {
		logger.Error(fmt.Sprintf("connecting to redis: %v: rate limiting is disabled", err), err)
		return nil
	}
	return ratelimit.New(rdb, "jifunze:ratelimit", conf.Redis.LoginLimit, conf.Redis.LoginWindow)
}

func newMetrics() *metrics.Metrics {
	return metrics.New("jifunze")
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newMongoClient))
	must(c.Provide(newRepositories))
	must(c.Provide(newEmailService))
	must(c.Provide(newValidator))
	must(c.Provide(newFileStore))
	must(c.Provide(newLimiter))
	must(c.Provide(newMetrics))
	must(c.Provide(user.NewService, dig.As(new(user.ServiceInterface), new(assignment.UserFinder))))
	must(c.Provide(assignment.NewService, dig.As(new(assignment.ServiceInterface), new(upload.AssignmentGetter))))
	must(c.Provide(upload.NewService, dig.As(new(upload.ServiceInterface))))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
