// schedctl drives the scheduling client against a clinic API from the
// command line. Point it at a real deployment or at the local
// stubserver binary.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/medisched/scheduling-client/internal/availability"
	"github.com/medisched/scheduling-client/internal/conflict"
	"github.com/medisched/scheduling-client/internal/config"
	"github.com/medisched/scheduling-client/internal/gateway"
	"github.com/medisched/scheduling-client/internal/ledger"
	"github.com/medisched/scheduling-client/internal/model"
	"github.com/medisched/scheduling-client/internal/prefs"
	"github.com/medisched/scheduling-client/internal/rolebind"
	"github.com/medisched/scheduling-client/internal/scheduler"
	"github.com/medisched/scheduling-client/pkg/clock"
	"github.com/medisched/scheduling-client/pkg/logger"
	"github.com/medisched/scheduling-client/pkg/metrics"
)

type app struct {
	cfg     *config.Config
	log     *logger.Logger
	gw      *gateway.Client
	bus     *ledger.Bus
	vm      *ledger.ViewModel
	machine *scheduler.Machine
	actor   model.Actor
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		a       app
		role    string
		actorID string
	)

	root := &cobra.Command{
		Use:           "schedctl",
		Short:         "Appointment scheduling client for the clinic API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(role, actorID)
		},
	}

	root.PersistentFlags().StringVar(&role, "role", "admin", "caller role: admin, receptionist or clinician")
	root.PersistentFlags().StringVar(&actorID, "actor-id", "", "caller identity, required for the clinician role")

	root.AddCommand(
		newCliniciansCmd(&a),
		newPatientsCmd(&a),
		newSlotsCmd(&a),
		newListCmd(&a),
		newBookCmd(&a),
		newRescheduleCmd(&a),
		newStatusCmd(&a),
		newDeleteCmd(&a),
		newStatsCmd(&a),
	)
	return root
}

func (a *app) init(role, actorID string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.New(&logger.Config{
		Level:      logger.WarnLevel,
		TimeFormat: time.RFC3339,
		Output:     os.Stderr,
		Console:    true,
	})

	m := metrics.New("schedclient", prometheus.DefaultRegisterer)
	a.gw = gateway.NewClient(gateway.Config{
		BaseURL:        cfg.API.BaseURL,
		Token:          cfg.API.Token,
		RequestTimeout: cfg.API.RequestTimeout,
		RetryBackoff:   cfg.API.RetryBackoff,
		RateLimit:      cfg.API.RateLimit,
		RateBurst:      cfg.API.RateBurst,
		CacheTTL:       cfg.API.CacheTTL,
	}, a.log, m)

	var store prefs.Store
	if cfg.Prefs.Backend == "redis" {
		redisStore, err := prefs.NewRedisStore(cfg.Prefs.RedisURL)
		if err != nil {
			return fmt.Errorf("preferences backend unavailable: %w", err)
		}
		store = redisStore
	} else {
		store = prefs.NewMemoryStore()
	}

	a.bus = ledger.NewBus()
	a.vm = ledger.NewViewModel(context.Background(), a.gw, store, a.bus, a.log)
	detector := conflict.NewDetector(a.gw, a.log)
	a.machine = scheduler.NewMachine(a.gw, detector, a.bus, a.log, m)

	a.actor = model.Actor{Role: model.Role(role)}
	if a.actor.Role == model.RoleClinician {
		id, err := uuid.Parse(actorID)
		if err != nil {
			return fmt.Errorf("the clinician role requires --actor-id: %w", err)
		}
		a.actor.ID = id
	}
	return nil
}

func (a *app) ctx() (context.Context, context.CancelFunc) {
	return scheduler.Deadline(context.Background(), a.cfg.API.RequestTimeout)
}

func newCliniciansCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clinicians",
		Short: "List the clinicians bookable by the current caller",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx()
			defer cancel()
			clinicians, err := a.gw.Clinicians(ctx)
			if err != nil {
				return err
			}

			binding := rolebind.For(a.actor, clinicians)
			if !binding.ShowPicker {
				fmt.Printf("%s  (own calendar)\n", binding.ClinicianID)
				return nil
			}
			for _, c := range binding.Choices {
				fmt.Printf("%s  %-30s %s\n", c.ID, c.Name, c.Specialty)
			}
			return nil
		},
	}
}

func newPatientsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "patients",
		Short: "List patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx()
			defer cancel()
			patients, err := a.gw.Patients(ctx)
			if err != nil {
				return err
			}
			for _, p := range patients {
				fmt.Printf("%s  %-30s %s\n", p.ID, p.Name, p.Contact)
			}
			return nil
		},
	}
}

func newSlotsCmd(a *app) *cobra.Command {
	var clinicianID, date string
	var duration int

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Show bookable slots for a clinician and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(clinicianID)
			if err != nil {
				return fmt.Errorf("invalid clinician id: %w", err)
			}
			day, err := clock.ParseDate(date)
			if err != nil {
				return err
			}

			ctx, cancel := a.ctx()
			defer cancel()
			calendar, err := a.gw.Availability(ctx, id, date)
			if err != nil {
				return err
			}

			slots := availability.Resolve(calendar.Rules, calendar.Exceptions, calendar.Bookings, id, day, duration)
			if len(slots) == 0 {
				fmt.Println("no slots for that day")
				return nil
			}
			for _, s := range slots {
				marker := " "
				if !s.Available {
					marker = "x"
				}
				fmt.Printf("[%s] %s  (%d min)\n", marker, s.StartTime, s.DurationMinutes)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&clinicianID, "clinician", "", "clinician id")
	cmd.Flags().StringVar(&date, "date", "", "calendar date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&duration, "duration", 0, "override slot duration in minutes")
	cmd.MarkFlagRequired("clinician")
	cmd.MarkFlagRequired("date")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var page, pageSize int
	var search, status, typ, prio, bucket string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the appointment ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx()
			defer cancel()
			if err := a.vm.Reload(ctx); err != nil {
				return err
			}

			a.vm.SetFilter(model.LedgerFilter{
				Search:   search,
				Status:   model.BookingStatus(status),
				Type:     model.BookingType(typ),
				Priority: model.BookingPriority(prio),
				Bucket:   model.DateBucket(bucket),
			})
			if pageSize > 0 {
				a.vm.SetPageSize(ctx, pageSize)
			}
			a.vm.SetPage(page)

			items, pg := a.vm.Page()
			for _, b := range items {
				fmt.Printf("%s  %s %s  %-22s %-22s %-16s %-9s %s\n",
					b.ID, b.Date, b.StartTime, b.PatientName, b.ClinicianName, b.Type, b.Status, b.Priority)
			}
			fmt.Printf("page %d/%d (%d appointments)\n", pg.Page, pg.TotalPages, pg.TotalCount)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "page size (persisted as a preference)")
	cmd.Flags().StringVar(&search, "search", "", "free-text search")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&typ, "type", "", "filter by type")
	cmd.Flags().StringVar(&prio, "priority", "", "filter by priority")
	cmd.Flags().StringVar(&bucket, "bucket", "all", "date bucket: all, today, this_week, this_month")
	return cmd
}

func newBookCmd(a *app) *cobra.Command {
	var patientID, clinicianID, typ, date, start string
	var priority, reason, notes string
	var force bool

	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book a new appointment",
		RunE: func(cmd *cobra.Command, args []string) error {
			patient, err := uuid.Parse(patientID)
			if err != nil {
				return fmt.Errorf("invalid patient id: %w", err)
			}

			ctx, cancel := a.ctx()
			defer cancel()

			a.machine.BeginCompose(a.actor)
			a.machine.SetPatient(patient)
			if a.actor.Role != model.RoleClinician {
				clinician, err := uuid.Parse(clinicianID)
				if err != nil {
					return fmt.Errorf("invalid clinician id: %w", err)
				}
				if err := a.machine.SetClinician(ctx, clinician); err != nil {
					return err
				}
			}
			if err := a.machine.SetDate(ctx, date); err != nil {
				return err
			}
			a.machine.SetTime(start)
			a.machine.SetType(model.BookingType(typ))
			if priority != "" {
				a.machine.SetPriority(model.BookingPriority(priority))
			}
			a.machine.SetReason(reason)
			a.machine.SetNotes(notes)

			if err := a.machine.Submit(ctx); err != nil {
				return err
			}
			return a.finishSubmission(ctx, force)
		},
	}
	cmd.Flags().StringVar(&patientID, "patient", "", "patient id")
	cmd.Flags().StringVar(&clinicianID, "clinician", "", "clinician id (ignored for clinician callers)")
	cmd.Flags().StringVar(&typ, "type", "consultation", "appointment type")
	cmd.Flags().StringVar(&date, "date", "", "calendar date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&start, "time", "", "start time (HH:MM)")
	cmd.Flags().StringVar(&priority, "priority", "", "priority: normal or high")
	cmd.Flags().StringVar(&reason, "reason", "", "visit reason")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	cmd.Flags().BoolVar(&force, "force", false, "override a detected conflict")
	cmd.MarkFlagRequired("patient")
	cmd.MarkFlagRequired("date")
	cmd.MarkFlagRequired("time")
	return cmd
}

func newRescheduleCmd(a *app) *cobra.Command {
	var id, date, start string
	var force bool

	cmd := &cobra.Command{
		Use:   "reschedule",
		Short: "Move an existing appointment",
		RunE: func(cmd *cobra.Command, args []string) error {
			bookingID, err := uuid.Parse(id)
			if err != nil {
				return fmt.Errorf("invalid appointment id: %w", err)
			}

			ctx, cancel := a.ctx()
			defer cancel()
			if err := a.vm.Reload(ctx); err != nil {
				return err
			}
			booking, ok := a.vm.Find(bookingID)
			if !ok {
				return fmt.Errorf("appointment %s not found", id)
			}

			a.machine.BeginReschedule(a.actor, booking)
			if err := a.machine.SetDate(ctx, date); err != nil {
				return err
			}
			a.machine.SetTime(start)

			if err := a.machine.Submit(ctx); err != nil {
				return err
			}
			return a.finishSubmission(ctx, force)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "appointment id")
	cmd.Flags().StringVar(&date, "date", "", "new calendar date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&start, "time", "", "new start time (HH:MM)")
	cmd.Flags().BoolVar(&force, "force", false, "override a detected conflict")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("date")
	cmd.MarkFlagRequired("time")
	return cmd
}

// finishSubmission resolves the machine's post-submit state, optionally
// overriding a presented conflict.
func (a *app) finishSubmission(ctx context.Context, force bool) error {
	if a.machine.State() == scheduler.StateConflictPresented && force {
		if err := a.machine.Override(ctx); err != nil {
			return err
		}
	}

	switch a.machine.State() {
	case scheduler.StateSucceeded:
		b := a.machine.Result()
		fmt.Printf("booked %s on %s at %s (%d min)\n", b.ID, b.Date, b.StartTime, b.DurationMinutes)
		return nil
	case scheduler.StateConflictPresented:
		fmt.Println("the requested time conflicts with:")
		for _, occ := range a.machine.Conflict().Occupants {
			fmt.Printf("  %s (%d min) %s — %s\n", occ.Start, occ.DurationMinutes, occ.Type, occ.PatientName)
		}
		var alternatives []string
		for _, s := range a.machine.Slots() {
			if s.Available {
				alternatives = append(alternatives, s.StartTime)
			}
		}
		if len(alternatives) > 0 {
			fmt.Printf("free slots: %v\n", alternatives)
		}
		return fmt.Errorf("appointment not booked; pick another slot or pass --force")
	case scheduler.StateComposing:
		for field, msg := range a.machine.FieldErrors() {
			fmt.Fprintf(os.Stderr, "%s %s\n", field, msg)
		}
		return fmt.Errorf("appointment not booked; fix the fields above")
	default:
		return fmt.Errorf("appointment not booked: %s", a.machine.FailureMessage())
	}
}

func newStatusCmd(a *app) *cobra.Command {
	var id, status string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Update an appointment's status",
		RunE: func(cmd *cobra.Command, args []string) error {
			bookingID, err := uuid.Parse(id)
			if err != nil {
				return fmt.Errorf("invalid appointment id: %w", err)
			}

			ctx, cancel := a.ctx()
			defer cancel()
			booking, err := a.vm.UpdateStatus(ctx, bookingID, model.BookingStatus(status))
			if err != nil {
				return err
			}
			if booking.Status == model.BookingStatusCompleted {
				a.bus.Publish(ledger.Event{Kind: ledger.EventCompleted, Booking: booking})
			}
			fmt.Printf("%s is now %s\n", booking.ID, booking.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "appointment id")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("status")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an appointment",
		RunE: func(cmd *cobra.Command, args []string) error {
			bookingID, err := uuid.Parse(id)
			if err != nil {
				return fmt.Errorf("invalid appointment id: %w", err)
			}
			ctx, cancel := a.ctx()
			defer cancel()
			if err := a.vm.Delete(ctx, bookingID); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", bookingID)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "appointment id")
	cmd.MarkFlagRequired("id")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show appointment statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx()
			defer cancel()
			if err := a.vm.Reload(ctx); err != nil {
				return err
			}
			s := a.vm.Stats()
			fmt.Printf("total: %d  today: %d  upcoming: %d  completion: %d%%\n",
				s.Total, s.Today, s.Upcoming, a.vm.CompletionRate())
			for status, count := range s.StatusHistogram {
				fmt.Printf("  %-10s %d\n", status, count)
			}
			return nil
		},
	}
}
