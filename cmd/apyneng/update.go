package main

import (
	"context"
	"fmt"
	"strings"

	"apyneng/internal/diff"
	"apyneng/internal/selector"
)

const diffContextLines = 3

// updateTasks replaces the selected tasks and tests with their upstream
// versions. With --test-only the task files are left alone.
func (a *app) updateTasks(ctx context.Context, sel selector.Expansion) error {
	files := append([]string{}, sel.Tests...)
	done := "Tasks and tests are updated"
	if a.opts.testOnly {
		done = "Tests are updated"
	} else {
		files = append(files, sel.Tasks...)
	}

	if err := a.saveBeforeUpdate(ctx); err != nil {
		return err
	}
	if err := a.upstream.Sync(ctx); err != nil {
		return err
	}
	changes, err := a.upstream.Diff(diff.NewGenerator(diffContextLines, true), a.cwd, files)
	if err != nil {
		return err
	}
	if err := a.upstream.CopyTasks(a.cwd, files); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, green("\nUpdated tasks and tests are copied"))

	updated, err := a.reviewUpdate(ctx, changes, updateTasksMessage)
	if err != nil {
		return err
	}
	if !updated {
		fmt.Fprintln(a.stdout, green("Tasks and tests are already up to date"))
		return nil
	}
	fmt.Fprintln(a.stdout, green(done))
	return nil
}

// updateChapters replaces whole chapter directories from the exercises
// directory.
func (a *app) updateChapters(ctx context.Context, chapters []string) error {
	if len(chapters) == 0 {
		fmt.Fprintln(a.stdout, yellow("No known chapters selected"))
		return nil
	}
	if err := a.saveBeforeUpdate(ctx); err != nil {
		return err
	}
	if err := a.upstream.Sync(ctx); err != nil {
		return err
	}
	if err := a.upstream.CopyChapters(a.cwd, chapters); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, green("\nUpdated chapters are copied"))

	updated, err := a.reviewUpdate(ctx, nil, updateChaptersMsg)
	if err != nil {
		return err
	}
	if !updated {
		fmt.Fprintln(a.stdout, green("All chapters are already up to date"))
	}
	return nil
}

// saveBeforeUpdate offers to commit local changes the update would overwrite.
func (a *app) saveBeforeUpdate(ctx context.Context) error {
	clean, err := a.git.IsClean(ctx)
	if err != nil || clean {
		return err
	}
	fmt.Fprintln(a.stdout, red(strings.ToUpper("Updating tasks and tests overwrites unsaved files!")))
	ok, err := a.confirm("There are unsaved changes in the current directory. Save them")
	if err != nil || !ok {
		return err
	}
	if err := a.git.SaveChanges(ctx, saveBeforeMessage, true, a.cfg.DefaultBranch); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, green("All changes in the current directory are saved. Starting the update..."))
	return nil
}

// reviewUpdate shows what the update changed and offers to push it. It
// reports false when the working tree is unchanged.
func (a *app) reviewUpdate(ctx context.Context, changes []*diff.FileDiff, message string) (bool, error) {
	clean, err := a.git.IsClean(ctx)
	if err != nil {
		return false, err
	}
	if clean {
		return false, nil
	}

	fmt.Fprintln(a.stdout, red("These files were updated:"))
	stat, err := a.git.DiffStat(ctx)
	if err != nil {
		return false, err
	}
	fmt.Fprintln(a.stdout, stat)
	for _, change := range changes {
		fmt.Fprintf(a.stdout, "%s %s\n", bold(change.Name), change.Summary())
		if !a.opts.disableVerbose {
			fmt.Fprint(a.stdout, change.Text)
		}
	}
	fmt.Fprintln(a.stdout, "\nTo inspect every difference answer n and run git diff.\n"+
		"Changes can be reverted with git checkout -- file (or git restore file).")

	ok, err := a.confirm("Save the changes and push them to GitHub")
	if err != nil {
		return true, err
	}
	if ok {
		if err := a.git.SaveChanges(ctx, message, true, a.cfg.DefaultBranch); err != nil {
			return true, err
		}
	}
	return true, nil
}
