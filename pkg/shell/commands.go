package shell

import (
	"context"
	"fmt"
	"strings"
)

// Command identifies a builtin. The set is closed: lookupCommand is the
// only way in and dispatch switches over every value.
type Command int

const (
	CmdUnknown Command = iota
	CmdPwd
	CmdCd
	CmdLs
	CmdCat
	CmdEcho
	CmdMkdir
	CmdRm
	CmdRmdir
	CmdMv
	CmdCp
	CmdTouch
	CmdHead
	CmdTail
	CmdWc
	CmdGrep
	CmdFind
	CmdTree
	CmdDiff
	CmdEnv
	CmdExport
	CmdUnset
	CmdHelp
	CmdGit
	CmdTrue
	CmdFalse
)

type commandInfo struct {
	name    string
	summary string
}

var commandTable = [...]commandInfo{
	CmdUnknown: {},
	CmdPwd:     {"pwd", "print the working directory"},
	CmdCd:      {"cd", "change the working directory"},
	CmdLs:      {"ls", "list directory contents"},
	CmdCat:     {"cat", "print files"},
	CmdEcho:    {"echo", "print arguments"},
	CmdMkdir:   {"mkdir", "create directories"},
	CmdRm:      {"rm", "remove files or directories"},
	CmdRmdir:   {"rmdir", "remove empty directories"},
	CmdMv:      {"mv", "move or rename files"},
	CmdCp:      {"cp", "copy files"},
	CmdTouch:   {"touch", "create files or update their time"},
	CmdHead:    {"head", "print the first lines of files"},
	CmdTail:    {"tail", "print the last lines of files"},
	CmdWc:      {"wc", "count lines, words and bytes"},
	CmdGrep:    {"grep", "search files for a pattern"},
	CmdFind:    {"find", "walk a directory tree"},
	CmdTree:    {"tree", "show a directory tree"},
	CmdDiff:    {"diff", "compare two files"},
	CmdEnv:     {"env", "print the environment"},
	CmdExport:  {"export", "set environment variables"},
	CmdUnset:   {"unset", "remove environment variables"},
	CmdHelp:    {"help", "list builtins"},
	CmdGit:     {"git", "version control"},
	CmdTrue:    {"true", "succeed"},
	CmdFalse:   {"false", "fail"},
}

var commandsByName = func() map[string]Command {
	m := make(map[string]Command, len(commandTable))
	for c, info := range commandTable {
		if info.name != "" {
			m[info.name] = Command(c)
		}
	}
	return m
}()

func lookupCommand(name string) Command {
	return commandsByName[name]
}

func (c Command) String() string {
	if c <= CmdUnknown || int(c) >= len(commandTable) {
		return "unknown"
	}
	return commandTable[c].name
}

// dispatch runs one builtin and returns its exit code.
func (in *Interpreter) dispatch(ctx context.Context, c *call) int {
	if name, value, ok := strings.Cut(c.name, "="); ok && validName(name) && len(c.args) == 0 {
		c.sess.Env[name] = value
		return 0
	}

	cmd := lookupCommand(c.name)
	in.logger.Debug("shell dispatch", "cmd", cmd, "args", len(c.args), "cwd", c.sess.Cwd)

	var err error
	switch cmd {
	case CmdPwd:
		err = in.pwd(c)
	case CmdCd:
		err = in.cd(c)
	case CmdLs:
		err = in.ls(c)
	case CmdCat:
		err = in.cat(c)
	case CmdEcho:
		err = in.echo(c)
	case CmdMkdir:
		err = in.mkdir(c)
	case CmdRm:
		err = in.rm(c)
	case CmdRmdir:
		err = in.rmdir(c)
	case CmdMv:
		err = in.mv(c)
	case CmdCp:
		err = in.cp(c)
	case CmdTouch:
		err = in.touch(c)
	case CmdHead:
		err = in.headTail(c, true)
	case CmdTail:
		err = in.headTail(c, false)
	case CmdWc:
		err = in.wc(c)
	case CmdGrep:
		err = in.grep(ctx, c)
	case CmdFind:
		err = in.find(ctx, c)
	case CmdTree:
		err = in.tree(c)
	case CmdDiff:
		err = in.diff(c)
	case CmdEnv:
		err = in.env(c)
	case CmdExport:
		err = in.export(c)
	case CmdUnset:
		err = in.unset(c)
	case CmdHelp:
		err = in.help(c)
	case CmdGit:
		err = in.git(ctx, c)
	case CmdTrue:
	case CmdFalse:
		err = exitStatus(1)
	case CmdUnknown:
		fmt.Fprintf(c.stderr, "%s: %v\n", c.name, ErrCommandNotFound)
		return ExitNotFound
	default:
		panic(fmt.Sprintf("shell: command %d has no handler", cmd))
	}
	return c.finish(err)
}

func (in *Interpreter) help(c *call) error {
	fmt.Fprintln(c.stdout, "Builtin commands:")
	for _, info := range commandTable[CmdPwd:] {
		fmt.Fprintf(c.stdout, "  %-7s %s\n", info.name, info.summary)
	}
	fmt.Fprintln(c.stdout, "\nSeparate commands with ';', '&&' or '||'. Redirect output with '>' or '>>'.")
	return nil
}
