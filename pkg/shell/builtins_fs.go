package shell

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/spf13/pflag"

	"github.com/odvcencio/sandgit/pkg/vfs"
)

func (c *call) flagSet() *pflag.FlagSet {
	set := pflag.NewFlagSet(c.name, pflag.ContinueOnError)
	set.SetOutput(io.Discard)
	return set
}

func (c *call) parse(set *pflag.FlagSet) ([]string, error) {
	if err := set.Parse(c.args); err != nil {
		return nil, usagef("%v", err)
	}
	return set.Args(), nil
}

func (in *Interpreter) pwd(c *call) error {
	fmt.Fprintln(c.stdout, c.sess.Cwd)
	return nil
}

func (in *Interpreter) cd(c *call) error {
	if len(c.args) > 1 {
		return usagef("too many arguments")
	}
	target := c.sess.Env["HOME"]
	if target == "" {
		target = in.opts.ProjectRoot
	}
	if len(c.args) == 1 {
		target = c.args[0]
		if target == "-" {
			target = c.sess.Env["OLDPWD"]
			if target == "" {
				return errors.New("OLDPWD not set")
			}
			fmt.Fprintln(c.stdout, target)
		}
	}
	p, err := in.resolve(c.sess, target)
	if err != nil {
		return err
	}
	info, err := in.fs.Stat(p)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &fs.PathError{Op: "cd", Path: p, Err: vfs.ErrNotDir}
	}
	c.sess.Env["OLDPWD"] = c.sess.Cwd
	c.sess.Env["PWD"] = p
	c.sess.Cwd = p
	return nil
}

func (in *Interpreter) ls(c *call) error {
	set := c.flagSet()
	all := set.BoolP("all", "a", false, "")
	long := set.BoolP("long", "l", false, "")
	args, err := c.parse(set)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		args = []string{"."}
	}

	entry := func(info vfs.FileInfo, name string) {
		if info.IsDir() {
			name += "/"
		}
		if *long {
			fmt.Fprintf(c.stdout, "%s %8d %s %s\n", info.Mode(), info.Size(), info.ModTime().UTC().Format("Jan _2 15:04"), name)
			return
		}
		fmt.Fprintln(c.stdout, name)
	}

	failed := false
	for i, arg := range args {
		p, err := in.resolve(c.sess, arg)
		if err == nil {
			var info vfs.FileInfo
			if info, err = in.fs.Stat(p); err == nil && !info.IsDir() {
				entry(info, arg)
				continue
			}
		}
		if err != nil {
			c.report(err)
			failed = true
			continue
		}
		kids, err := in.fs.ReadDir(p)
		if err != nil {
			c.report(err)
			failed = true
			continue
		}
		if len(args) > 1 {
			if i > 0 {
				fmt.Fprintln(c.stdout)
			}
			fmt.Fprintf(c.stdout, "%s:\n", arg)
		}
		for _, k := range kids {
			if !*all && strings.HasPrefix(k.Name(), ".") {
				continue
			}
			entry(k, k.Name())
		}
	}
	if failed {
		return exitStatus(1)
	}
	return nil
}

func (in *Interpreter) cat(c *call) error {
	if len(c.args) == 0 {
		return usagef("missing file operand")
	}
	failed := false
	for _, arg := range c.args {
		data, err := in.readFile(c, arg)
		if err != nil {
			c.report(err)
			failed = true
			continue
		}
		c.stdout.Write(data)
	}
	if failed {
		return exitStatus(1)
	}
	return nil
}

func (in *Interpreter) readFile(c *call, arg string) ([]byte, error) {
	p, err := in.resolve(c.sess, arg)
	if err != nil {
		return nil, err
	}
	if in.fs.IsDir(p) {
		return nil, &fs.PathError{Op: "read", Path: p, Err: vfs.ErrIsDir}
	}
	return in.fs.ReadFile(p)
}

func (in *Interpreter) echo(c *call) error {
	args := c.args
	newline := true
	if len(args) > 0 && args[0] == "-n" {
		newline = false
		args = args[1:]
	}
	fmt.Fprint(c.stdout, strings.Join(args, " "))
	if newline {
		fmt.Fprintln(c.stdout)
	}
	return nil
}

// writable resolves arg and applies the write policy.
func (in *Interpreter) writable(c *call, arg string) (string, error) {
	p, err := in.resolve(c.sess, arg)
	if err != nil {
		return "", err
	}
	if err := in.checkWrite(p); err != nil {
		return "", err
	}
	return p, nil
}

// each applies fn to every argument, reporting failures as it goes.
func (c *call) each(args []string, fn func(arg string) error) error {
	failed := false
	for _, arg := range args {
		if err := fn(arg); err != nil {
			c.report(err)
			failed = true
		}
	}
	if failed {
		return exitStatus(1)
	}
	return nil
}

func (in *Interpreter) mkdir(c *call) error {
	set := c.flagSet()
	parents := set.BoolP("parents", "p", false, "")
	args, err := c.parse(set)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return usagef("missing operand")
	}
	return c.each(args, func(arg string) error {
		p, err := in.writable(c, arg)
		if err != nil {
			return err
		}
		if *parents {
			return in.fs.MkdirAll(p)
		}
		return in.fs.Mkdir(p)
	})
}

func (in *Interpreter) rm(c *call) error {
	set := c.flagSet()
	recursive := set.BoolP("recursive", "r", false, "")
	set.BoolVarP(recursive, "Recursive", "R", false, "")
	force := set.BoolP("force", "f", false, "")
	args, err := c.parse(set)
	if err != nil {
		return err
	}
	if len(args) == 0 && !*force {
		return usagef("missing operand")
	}
	return c.each(args, func(arg string) error {
		if base := vfs.Base("/" + strings.TrimRight(arg, "/")); base == "." || base == ".." {
			return fmt.Errorf("refusing to remove '.' or '..' directory: skipping '%s'", arg)
		}
		p, err := in.writable(c, arg)
		if err != nil {
			return err
		}
		info, err := in.fs.Stat(p)
		if err != nil {
			if *force && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			if !*recursive {
				return &fs.PathError{Op: "rm", Path: p, Err: vfs.ErrIsDir}
			}
			return in.fs.RemoveAll(p)
		}
		return in.fs.Remove(p)
	})
}

func (in *Interpreter) rmdir(c *call) error {
	if len(c.args) == 0 {
		return usagef("missing operand")
	}
	return c.each(c.args, func(arg string) error {
		p, err := in.writable(c, arg)
		if err != nil {
			return err
		}
		info, err := in.fs.Stat(p)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return &fs.PathError{Op: "rmdir", Path: p, Err: vfs.ErrNotDir}
		}
		return in.fs.Remove(p)
	})
}

// destination returns where src lands for mv and cp: inside dst when dst
// is a directory, dst itself otherwise.
func (in *Interpreter) destination(src, dst string) string {
	if in.fs.IsDir(dst) {
		return vfs.Join(dst, vfs.Base(src))
	}
	return dst
}

func (in *Interpreter) mv(c *call) error {
	if len(c.args) < 2 {
		return usagef("missing destination operand")
	}
	srcs, dstArg := c.args[:len(c.args)-1], c.args[len(c.args)-1]
	dst, err := in.writable(c, dstArg)
	if err != nil {
		return err
	}
	if len(srcs) > 1 && !in.fs.IsDir(dst) {
		return &fs.PathError{Op: "mv", Path: dst, Err: vfs.ErrNotDir}
	}
	return c.each(srcs, func(arg string) error {
		src, err := in.writable(c, arg)
		if err != nil {
			return err
		}
		to := in.destination(src, dst)
		if src == to {
			return fmt.Errorf("'%s' and '%s' are the same file", arg, dstArg)
		}
		if vfs.Within(src, to) {
			return fmt.Errorf("cannot move '%s' to a subdirectory of itself", arg)
		}
		return in.fs.Rename(src, to)
	})
}

func (in *Interpreter) cp(c *call) error {
	set := c.flagSet()
	recursive := set.BoolP("recursive", "r", false, "")
	set.BoolVarP(recursive, "Recursive", "R", false, "")
	args, err := c.parse(set)
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return usagef("missing destination operand")
	}
	srcs, dstArg := args[:len(args)-1], args[len(args)-1]
	dst, err := in.writable(c, dstArg)
	if err != nil {
		return err
	}
	if len(srcs) > 1 && !in.fs.IsDir(dst) {
		return &fs.PathError{Op: "cp", Path: dst, Err: vfs.ErrNotDir}
	}
	return c.each(srcs, func(arg string) error {
		src, err := in.resolve(c.sess, arg)
		if err != nil {
			return err
		}
		info, err := in.fs.Stat(src)
		if err != nil {
			return err
		}
		to := in.destination(src, dst)
		if !info.IsDir() {
			if src == to {
				return fmt.Errorf("'%s' and '%s' are the same file", arg, dstArg)
			}
			return in.copyFile(src, to, info)
		}
		if !*recursive {
			return fmt.Errorf("-r not specified; omitting directory '%s'", arg)
		}
		if vfs.Within(src, to) {
			return fmt.Errorf("cannot copy a directory, '%s', into itself", arg)
		}
		return in.fs.Walk(src, func(p string, info vfs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			target := to
			if rel := vfs.Rel(src, p); rel != "." {
				target = vfs.Join(to, rel)
			}
			if info.IsDir() {
				return in.fs.MkdirAll(target)
			}
			return in.copyFile(p, target, info)
		})
	})
}

func (in *Interpreter) copyFile(src, dst string, info vfs.FileInfo) error {
	data, err := in.fs.ReadFile(src)
	if err != nil {
		return err
	}
	perm := fs.FileMode(0o644)
	if info.IsExecutable() {
		perm = 0o755
	}
	return in.fs.WriteFile(dst, data, perm)
}

func (in *Interpreter) touch(c *call) error {
	if len(c.args) == 0 {
		return usagef("missing file operand")
	}
	return c.each(c.args, func(arg string) error {
		p, err := in.writable(c, arg)
		if err != nil {
			return err
		}
		info, err := in.fs.Stat(p)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return in.fs.WriteFile(p, nil, 0o644)
		case err != nil:
			return err
		case info.IsDir():
			return nil
		}
		data, err := in.fs.ReadFile(p)
		if err != nil {
			return err
		}
		perm := fs.FileMode(0o644)
		if info.IsExecutable() {
			perm = 0o755
		}
		return in.fs.WriteFile(p, data, perm)
	})
}
