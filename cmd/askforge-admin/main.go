// askforge-admin manages the knowledge-base MySQL database: schema
// initialization and migrations, user accounts and the active LLM model.
//
//	askforge-admin [flags] [users]           interactive user manager
//	askforge-admin init                      create database, migrate, seed
//	askforge-admin migrate [up|down|version|force N]
//	askforge-admin models list|activate ID|probe ID
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"askforge-client/admin"
	"askforge-client/utils"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"
)

var version = "1.0.0"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+err.Error()))
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("askforge-admin", pflag.ContinueOnError)
	envFile := flagSet.String("env", ".env", "file with DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME")
	debug := flagSet.Bool("debug", false, "verbose logging")
	showVersion := flagSet.Bool("version", false, "show version information")
	flagSet.BoolP("help", "h", false, "show help")
	flagSet.SetInterspersed(false)

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if *showVersion {
		fmt.Printf("AskForge-AI admin v%s\n", version)
		return nil
	}

	logger := utils.NewConsoleLogger(os.Stderr, *debug)

	cfg, err := admin.LoadConfig(*envFile)
	if err != nil {
		return err
	}
	logger.Debug("Database: %s", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rest := flagSet.Args()
	command := "users"
	if len(rest) > 0 {
		command, rest = rest[0], rest[1:]
	}

	c := newConsole(os.Stdin, os.Stdout)
	switch command {
	case "users":
		return withStore(ctx, cfg, func(store *admin.Store) error {
			return userMenu(ctx, store, c)
		})
	case "init":
		return initDatabase(ctx, cfg, logger, c)
	case "migrate":
		return migrateCommand(ctx, cfg, logger, c, rest)
	case "models":
		return modelsCommand(ctx, cfg, c, rest)
	default:
		printHelp(flagSet)
		return fmt.Errorf("unknown command %q", command)
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Println(titleStyle.Render("askforge-admin") + " - AskForge-AI knowledge base administration")
	fmt.Println()
	fmt.Println("Usage: askforge-admin [flags] [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  users                       interactive user manager (default)")
	fmt.Println("  init                        create database, apply migrations, seed admin and modules")
	fmt.Println("  migrate [up|down|version]   manage schema migrations")
	fmt.Println("  migrate force N             mark version N as applied")
	fmt.Println("  models list                 list configured LLM models")
	fmt.Println("  models activate ID          make ID the only active model")
	fmt.Println("  models probe ID             send a test prompt to model ID")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Print(flagSet.FlagUsages())
}

func withDB(ctx context.Context, cfg *admin.Config, fn func(*sql.DB) error) error {
	db, err := admin.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%w\nVerifique as configurações no arquivo .env", err)
	}
	defer db.Close()
	return fn(db)
}

func withStore(ctx context.Context, cfg *admin.Config, fn func(*admin.Store) error) error {
	return withDB(ctx, cfg, func(db *sql.DB) error { return fn(admin.NewStore(db)) })
}

func initDatabase(ctx context.Context, cfg *admin.Config, logger *utils.Logger, c *console) error {
	c.println(headerStyle.Render("Inicialização do Banco de Dados - Knowledge Base"))
	c.println()

	if err := admin.EnsureDatabase(ctx, cfg); err != nil {
		c.println(dimStyle.Render("Verifique se o MySQL está rodando, se as credenciais no arquivo .env estão corretas\ne se o usuário tem permissão para criar bancos de dados."))
		return err
	}
	c.success("Banco de dados '%s' criado/selecionado com sucesso!", cfg.Name)

	mg, err := admin.NewMigrator(ctx, cfg, logger)
	if err != nil {
		return err
	}
	err = adoptLegacySchema(ctx, cfg, mg, c)
	if err == nil {
		err = mg.Up()
	}
	mg.Close()
	if err != nil {
		return err
	}
	c.success("Tabelas criadas/atualizadas com sucesso!")

	return withStore(ctx, cfg, func(store *admin.Store) error {
		report, err := store.Seed(ctx)
		if err != nil {
			return err
		}
		if report.AdminCreated {
			c.success("Usuário admin criado com sucesso!")
			c.printf("  Email: %s\n  Senha: %s\n", admin.DefaultAdminEmail, admin.DefaultAdminPassword)
		} else {
			c.warn("Usuário admin já existe!")
		}
		c.success("Módulos de exemplo criados! (%d novos)", report.ModulesCreated)
		c.println()
		c.success("Banco de dados inicializado com sucesso!")
		return nil
	})
}

func migrateCommand(ctx context.Context, cfg *admin.Config, logger *utils.Logger, c *console, args []string) error {
	mg, err := admin.NewMigrator(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer mg.Close()

	sub := "up"
	if len(args) > 0 {
		sub = args[0]
	}
	switch sub {
	case "up":
		if err := adoptLegacySchema(ctx, cfg, mg, c); err != nil {
			return err
		}
		if err := mg.Up(); err != nil {
			return err
		}
	case "down":
		if err := mg.Down(); err != nil {
			return err
		}
	case "force":
		if len(args) < 2 {
			return errors.New("usage: migrate force N")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[1])
		}
		if err := mg.Force(n); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown migrate command %q", sub)
	}

	v, dirty, err := mg.Version()
	if err != nil {
		return err
	}
	state := successStyle.Render("clean")
	if dirty {
		state = errorStyle.Render("dirty")
	}
	c.printf("Schema version %d (%s)\n", v, state)
	return nil
}

// adoptLegacySchema marks the systems migration as applied on databases
// that the old setup scripts already extended with system_id.
func adoptLegacySchema(ctx context.Context, cfg *admin.Config, mg *admin.Migrator, c *console) error {
	v, dirty, err := mg.Version()
	if err != nil {
		return err
	}
	columns := 0
	err = withDB(ctx, cfg, func(db *sql.DB) error {
		columns, err = admin.SystemsColumns(ctx, db, cfg.Name)
		return err
	})
	if err != nil {
		return err
	}
	force, err := admin.LegacyForce(v, dirty, columns)
	if err != nil {
		return err
	}
	if force == 0 {
		return nil
	}
	c.warn("Esquema existente com sistemas detectado; marcando a versão %d como aplicada.", force)
	return mg.Force(force)
}

func modelsCommand(ctx context.Context, cfg *admin.Config, c *console, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	var id int64
	if args[0] != "list" {
		if len(args) < 2 {
			return fmt.Errorf("usage: models %s ID", args[0])
		}
		var err error
		if id, err = strconv.ParseInt(args[1], 10, 64); err != nil {
			return fmt.Errorf("invalid model id %q", args[1])
		}
	}

	return withStore(ctx, cfg, func(store *admin.Store) error {
		switch args[0] {
		case "list":
			return listModels(ctx, store, c)
		case "activate":
			if err := store.ActivateModel(ctx, id); err != nil {
				return err
			}
			c.success("Modelo %d ativado.", id)
			return nil
		case "probe":
			m, err := store.GetModel(ctx, id)
			if err != nil {
				return err
			}
			c.println(dimStyle.Render(fmt.Sprintf("Testando %s (%s/%s)...", m.Name, m.Provider, m.Model)))
			res, err := admin.Probe(ctx, *m)
			if err != nil {
				return err
			}
			c.success("%s respondeu em %s: %q", res.BaseURL, res.Latency.Round(1e6), res.Reply)
			return nil
		default:
			return fmt.Errorf("unknown models command %q", args[0])
		}
	})
}

func listModels(ctx context.Context, store *admin.Store, c *console) error {
	models, err := store.ListModels(ctx)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		c.println("Nenhum modelo cadastrado.")
		return nil
	}

	cell := func(w int) lipgloss.Style { return lipgloss.NewStyle().Width(w) }
	row := func(id, provider, name, model, images, active string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top,
			cell(6).Render(id), cell(12).Render(provider), cell(24).Render(name),
			cell(28).Render(model), cell(9).Render(images), cell(6).Render(active))
	}
	c.println(titleStyle.Render(row("ID", "Provider", "Nome", "Modelo", "Imagens", "Ativo")))
	c.println(dimStyle.Render(strings.Repeat("-", 85)))
	for _, m := range models {
		c.println(row(strconv.FormatInt(m.ID, 10), m.Provider, truncate(m.Name, 23),
			truncate(m.Model, 27), check(m.SupportsImages), check(m.Active)))
	}
	return nil
}
