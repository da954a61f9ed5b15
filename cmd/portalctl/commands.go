package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ukydev/fleet-portal/internal/inspection"
	"github.com/ukydev/fleet-portal/internal/models"
)

var errUnknownCommand = errors.New("unknown command")

func (a *app) run(ctx context.Context, name string, args []string) error {
	switch name {
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.logout(ctx)
	case "passwd":
		return a.passwd(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "todo":
		return a.todo(ctx)
	case "bookings":
		return a.bookings(ctx, args)
	case "vehicles":
		return a.vehicles(ctx)
	case "create-user":
		return a.createUser(ctx, args)
	}
	return fmt.Errorf("%w %q", errUnknownCommand, name)
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		var err error
		if *email, err = a.prompt("Email: "); err != nil {
			return err
		}
	}
	password, err := a.prompt("Password: ")
	if err != nil {
		return err
	}

	resp, err := a.api.Login(ctx, *email, password)
	if err != nil {
		return err
	}
	a.cache.Invalidate()
	fmt.Fprintf(a.out, "Signed in as %s (%s)\n", resp.User.Email, resp.User.Role)
	if resp.User.TemporaryPassword {
		fmt.Fprintln(a.out, "Your password is temporary; run: portalctl passwd")
	}
	return nil
}

func (a *app) logout(ctx context.Context) error {
	err := a.api.Logout(ctx)
	a.cache.Invalidate()
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

// passwd re-authenticates with the current password before changing it. The
// sign-out that re-authentication emits must not send the user to login.
func (a *app) passwd(ctx context.Context) error {
	p, err := a.gate.enter(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	current, err := a.prompt("Current password: ")
	if err != nil {
		return err
	}
	next, err := a.prompt("New password: ")
	if err != nil {
		return err
	}
	confirm, err := a.prompt("Repeat new password: ")
	if err != nil {
		return err
	}
	if next != confirm {
		return errors.New("passwords do not match")
	}

	a.reauth.BeginReauth()
	defer a.reauth.EndReauth()
	if err := a.api.Reauthenticate(ctx, p.State.User.Email, current); err != nil {
		return fmt.Errorf("re-authenticate: %w", err)
	}
	if err := a.api.ChangePassword(ctx, current, next); err != nil {
		return err
	}
	if p.Redirected() {
		return errRedirected
	}
	fmt.Fprintln(a.out, "Password changed")
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	p, err := a.gate.enter(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	fmt.Fprintf(a.out, "%s\t%s\t%s\n", p.State.User.UID, p.State.User.Email, p.State.Role)
	return nil
}

func (a *app) todo(ctx context.Context) error {
	p, err := a.gate.enter(ctx, models.RoleStaff)
	if err != nil {
		return err
	}
	defer p.Close()

	todos, err := a.api.Todo(ctx)
	if err != nil {
		return err
	}
	if len(todos) == 0 {
		fmt.Fprintln(a.out, "No inspections to submit")
		return nil
	}
	writeTodos(a.out, todos)
	return nil
}

func (a *app) bookings(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("bookings", flag.ContinueOnError)
	status := fs.String("status", "", "filter: pending, approved or rejected (Receptionist/Admin)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := a.gate.enter(ctx, models.RoleStaff, models.RoleReceptionist, models.RoleAdmin)
	if err != nil {
		return err
	}
	defer p.Close()

	var list []models.Booking
	if p.State.Role == models.RoleStaff {
		list, err = a.api.MyBookings(ctx)
	} else {
		list, err = a.api.Bookings(ctx, *status)
	}
	if err != nil {
		return err
	}
	writeBookings(a.out, list)
	return nil
}

func (a *app) vehicles(ctx context.Context) error {
	p, err := a.gate.enter(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	list, err := a.api.Vehicles(ctx)
	if err != nil {
		return err
	}
	writeVehicles(a.out, list)
	return nil
}

func (a *app) createUser(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	req := models.CreateUserRequest{}
	fs.StringVar(&req.Email, "email", "", "account email (required)")
	fs.StringVar(&req.FirstName, "first", "", "first name")
	fs.StringVar(&req.LastName, "last", "", "last name")
	fs.StringVar(&req.Phone, "phone", "", "phone number")
	role := fs.String("role", string(models.RoleStaff), "Staff, Receptionist or Admin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	req.Role = models.Role(*role)
	if req.Email == "" {
		return errors.New("-email is required")
	}
	if !models.IsValidRole(req.Role) {
		return fmt.Errorf("invalid role %q", *role)
	}

	p, err := a.gate.enter(ctx, models.RoleAdmin)
	if err != nil {
		return err
	}
	defer p.Close()

	resp, err := a.api.CreateUser(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created %s (%s) as %s\nTemporary password: %s\n", req.Email, resp.UserID, req.Role, resp.TemporaryPassword)
	return nil
}

func (a *app) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(label, ": "), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func writeTodos(w io.Writer, todos []inspection.Todo) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BOOKING\tVEHICLE\tDESTINATION\tRETURN\tDUE")
	for _, t := range todos {
		due := string(models.InspectionPost)
		if t.NeedsPreInspection {
			due = string(models.InspectionPre)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.Booking.ID, t.Booking.Vehicle, t.Booking.Destination, formatDate(t.Booking.ReturnDate), due)
	}
	tw.Flush()
}

func writeBookings(w io.Writer, bookings []models.Booking) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BOOKING\tVEHICLE\tFROM\tTO\tSTATUS\tKEY")
	for _, b := range bookings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", b.ID, b.Vehicle, formatDate(b.BookingDate), formatDate(b.ReturnDate), bookingStatus(b), keyStatus(b))
	}
	tw.Flush()
}

func writeVehicles(w io.Writer, vehicles []models.Vehicle) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VEHICLE\tPLATE\tMAKE\tSEATS\tFUEL\tMAINTENANCE")
	for _, v := range vehicles {
		maintenance := "-"
		if v.MaintenanceStatus {
			maintenance = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s %s %d\t%d\t%s\t%s\n", v.ID, v.PlateNumber, v.Brand, v.Model, v.Year, v.SeatCapacity, v.FuelType, maintenance)
	}
	tw.Flush()
}

func bookingStatus(b models.Booking) string {
	switch {
	case b.IsRejected():
		return "rejected"
	case b.IsApproved():
		return "approved"
	}
	return "pending"
}

func keyStatus(b models.Booking) string {
	switch {
	case b.KeyReturnStatus:
		return "returned"
	case b.KeyCollectionStatus:
		return "collected"
	}
	return "-"
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
