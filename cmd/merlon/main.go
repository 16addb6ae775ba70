package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/refmt"
	"github.com/polydawn/refmt/json"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/Wrymouth/merlon"
	"github.com/Wrymouth/merlon/moddir"
	"github.com/Wrymouth/merlon/pack"
)

/*
	Output serialization formats
*/
const (
	FmtJson = "json"
	FmtDumb = "dumb"
)

type baseCLI struct {
	Format         string // Output api format, eg. json
	ProgressEnable bool   // Emit progress notifications yes/no
	PackCLI        struct {
		ModDirPath string // Mod dir to package (default: cwd)
		OutputPath string // Output file to write (default: <name>.merlon in cwd)
	}
	InitConfigCLI struct {
		ModDirPath string // Mod dir to write a defaulted manifest into
	}
}

func configurePack(cli *baseCLI, appPack *kingpin.CmdClause) {
	appPack.Flag("output", "The output file to write to.  Defaults to NAME.merlon, where NAME is the name of the mod package.").
		Short('o').
		StringVar(&cli.PackCLI.OutputPath)
	appPack.Flag("dir", "The mod dir to package").
		Default(".").
		StringVar(&cli.PackCLI.ModDirPath)
}

func configureInitConfig(cli *baseCLI, appInitConfig *kingpin.CmdClause) {
	appInitConfig.Arg("dir", "The mod dir to write a manifest for").
		Default(".").
		StringVar(&cli.InitConfigCLI.ModDirPath)
}

/*
	Blocks until a sigint is received, then calls cancel.
*/
func CancelOnInterrupt(cancel context.CancelFunc) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	<-signalChan
	cancel()
	close(signalChan)
}

func main() {
	ctx := context.Background()
	exitCode := Main(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	os.Exit(int(exitCode))
}

func Main(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) merlon.ExitCode {
	ctx, cancel := context.WithCancel(ctx)
	go CancelOnInterrupt(cancel)

	cli := baseCLI{}

	app := kingpin.New("merlon", "Mod packaging for the papermario decompilation")
	app.HelpFlag.Short('h')

	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)

	app.Flag("format", "Output api format").
		Default(FmtDumb).
		EnumVar(&cli.Format, FmtJson, FmtDumb)
	app.Flag("progress", "Emit stage progress notifications").
		BoolVar(&cli.ProgressEnable)

	appPack := app.Command("pack", "package this mod's commits into an encrypted distributable")
	configurePack(&cli, appPack)

	appInitConfig := app.Command("init-config", "write a defaulted merlon.toml for an existing mod dir")
	configureInitConfig(&cli, appInitConfig)

	var termErr error
	app.Terminate(func(status int) {
		termErr = fmt.Errorf("parsing error: %d\n", status)
	})
	cmd, err := app.Parse(args[1:])
	if err != nil {
		fmt.Fprintln(stderr, err)
		return merlon.ExitUsage
	}
	if termErr != nil {
		fmt.Fprintln(stderr, termErr)
		return merlon.ExitUsage
	}

	switch cmd {
	case appPack.FullCommand():
		outputPath, err := executePack(ctx, cli, stderr)
		SerializeResult(cli.Format, outputPath, err, stdout, stderr)
		return merlon.ExitCodeForCategory(Category(err))
	case appInitConfig.FullCommand():
		err := executeInitConfig(cli, stdout)
		if err != nil {
			fmt.Fprintln(stderr, err)
		}
		return merlon.ExitCodeForCategory(Category(err))
	}

	return merlon.ExitSuccess
}

func SerializeResult(format string, outputPath string, resultErr error, stdout io.Writer, stderr io.Writer) {
	result := &merlon.Event_Result{
		Path: outputPath,
	}
	result.SetError(resultErr)
	ev := merlon.Event{Result: result}
	switch format {
	case FmtJson:
		marshaller := refmt.NewMarshallerAtlased(json.EncodeOptions{}, stdout, merlon.Atlas)
		err := marshaller.Marshal(&ev)
		if err != nil {
			panic(err)
		}
	case FmtDumb:
		if resultErr != nil {
			fmt.Fprintln(stderr, resultErr)
		} else {
			fmt.Fprintf(stdout, "Wrote distributable to %s\n", outputPath)
		}
	default:
		panic(fmt.Errorf("merlon: invalid format %s", format))
	}
}

func executePack(ctx context.Context, cli baseCLI, stderr io.Writer) (string, error) {
	modDir, err := moddir.Open(cli.PackCLI.ModDirPath)
	if err != nil {
		return "", err
	}

	// Drain monitor events to the diagnostic stream.  The pipeline
	// closes the channel when it's done.
	events := make(chan merlon.Event)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range events {
			switch {
			case ev.Warning != nil:
				fmt.Fprintf(stderr, "warning: %s\n", ev.Warning.Msg)
			case ev.Progress != nil && cli.ProgressEnable:
				fmt.Fprintf(stderr, "%s: %s\n", ev.Progress.Stage, ev.Progress.Desc)
			}
		}
	}()

	outputPath, err := pack.Pack(ctx, pack.Spec{
		ModDir:     modDir,
		OutputPath: cli.PackCLI.OutputPath,
		Monitor:    merlon.Monitor{Chan: events},
	})
	<-drained
	return outputPath, err
}

func executeInitConfig(cli baseCLI, stdout io.Writer) error {
	configPath := filepath.Join(cli.InitConfigCLI.ModDirPath, moddir.ManifestName)
	if _, err := os.Stat(configPath); err == nil {
		return Errorf(merlon.ErrUsage, "refusing to overwrite existing %s", configPath)
	}
	config, err := moddir.DefaultConfig(cli.InitConfigCLI.ModDirPath)
	if err != nil {
		return err
	}
	if err := moddir.WriteConfigFile(config, configPath); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %s\n", configPath)
	return nil
}
