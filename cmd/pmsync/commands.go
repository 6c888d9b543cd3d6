package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"pmsync/internal/models"
	"pmsync/internal/store"
	"pmsync/internal/util"
)

type storeCommand func(a *app, s *store.Store, args []string) error

var storeCommands = map[string]storeCommand{
	"summary":        (*app).summary,
	"add-project":    (*app).addProject,
	"add-task":       (*app).addTask,
	"toggle-task":    (*app).toggleTask,
	"add-member":     (*app).addMember,
	"delete-project": (*app).deleteProject,
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := a.flags("login")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	line := fs.Bool("line", false, "sign in with LINE")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		user *models.User
		err  error
	)
	if *line {
		user, err = a.sessions.LoginWithLine(ctx)
	} else {
		user, err = a.sessions.LoginWithEmail(ctx, *email, *password)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "signed in as %s <%s> via %s\n", user.Name, user.Email, user.LoginMethod)
	return nil
}

func (a *app) summary(s *store.Store, args []string) error {
	if err := a.flags("summary").Parse(args); err != nil {
		return err
	}
	writeSummary(a.out, s.Snapshot(), s.Pending())
	return nil
}

func writeSummary(out io.Writer, snap *store.Snapshot, pending []store.PendingWrite) {
	if snap.CurrentUser != nil {
		fmt.Fprintf(out, "user: %s <%s>\n", snap.CurrentUser.Name, snap.CurrentUser.Email)
	} else {
		fmt.Fprintln(out, "user: (not signed in)")
	}
	fmt.Fprintf(out, "status: %s\n\n", snap.Status)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROJECT\tSTATUS\tPRIORITY\tPROGRESS\tMEMBERS\tTASKS\tMEETINGS\tDOCS\tPOSTS")
	for _, p := range snap.Projects {
		v, _ := snap.ProjectView(p.ID)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d%%\t%d\t%d\t%d\t%d\t%d\n",
			p.ID, p.Name, p.Status, p.Priority, p.Progress, len(p.Members),
			len(v.Tasks), len(v.Meetings), len(v.Documents), len(v.SocialContents))
	}
	_ = w.Flush()

	for _, p := range snap.Projects {
		v, _ := snap.ProjectView(p.ID)
		if len(v.Tasks) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s\n", p.Name)
		for _, t := range v.Tasks {
			fmt.Fprintf(out, "  [%s] %s %s", t.Status, t.ID, t.Name)
			if t.Assignee != "" {
				fmt.Fprintf(out, " @%s", t.Assignee)
			}
			fmt.Fprintln(out)
		}
	}

	if len(pending) > 0 {
		fmt.Fprintf(out, "\n%d unconfirmed write(s)\n", len(pending))
		for _, pw := range pending {
			fmt.Fprintf(out, "  %s %s/%s attempts=%d\n", pw.Op, pw.Type, pw.ID, pw.Attempts)
		}
	}
}

func (a *app) addProject(s *store.Store, args []string) error {
	fs := a.flags("add-project")
	name := fs.String("name", "", "project name")
	desc := fs.String("description", "", "description")
	priority := fs.String("priority", string(models.PriorityMedium), "低, 中 or 高")
	start := fs.String("start", "", "start date (YYYY-MM-DD)")
	deadline := fs.String("deadline", "", "deadline (YYYY-MM-DD)")
	members := fs.String("members", "", "comma separated member emails")
	if err := fs.Parse(args); err != nil {
		return err
	}

	draft := store.ProjectDraft{
		Name:              *name,
		Description:       *desc,
		Priority:          models.Priority(*priority),
		StartDate:         *start,
		Deadline:          *deadline,
		MemberIdentifiers: util.SplitList(*members),
	}
	if u := s.Snapshot().CurrentUser; u != nil {
		draft.OwnerID = u.ID
	}
	p, err := s.AddProject(draft)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created project %s (%s)\n", p.ID, p.Name)
	return nil
}

func (a *app) addTask(s *store.Store, args []string) error {
	fs := a.flags("add-task")
	projectID := fs.String("project", "", "project id")
	name := fs.String("name", "", "task name")
	assignee := fs.String("assignee", "", "assignee")
	due := fs.String("due", "", "due date (YYYY-MM-DD)")
	priority := fs.String("priority", string(models.PriorityMedium), "低, 中 or 高")
	if err := fs.Parse(args); err != nil {
		return err
	}

	t, err := s.AddTask(models.Task{
		ProjectID: *projectID,
		Name:      *name,
		Assignee:  *assignee,
		DueDate:   *due,
		Priority:  models.Priority(*priority),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created task %s (%s)\n", t.ID, t.Name)
	return nil
}

func (a *app) toggleTask(s *store.Store, args []string) error {
	fs := a.flags("toggle-task")
	id := fs.String("id", "", "task id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	status, err := s.ToggleTaskStatus(*id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "task %s is now %s\n", *id, status)
	return nil
}

func (a *app) addMember(s *store.Store, args []string) error {
	fs := a.flags("add-member")
	projectID := fs.String("project", "", "project id")
	email := fs.String("email", "", "member email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := s.AddMember(*projectID, *email); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s is a member of %s\n", *email, *projectID)
	return nil
}

func (a *app) deleteProject(s *store.Store, args []string) error {
	fs := a.flags("delete-project")
	id := fs.String("id", "", "project id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := s.DeleteProject(*id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted project %s\n", *id)
	return nil
}
