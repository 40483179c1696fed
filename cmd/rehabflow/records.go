package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"alcyxob/rehabflow/internal/domain"

	"github.com/spf13/cobra"
)

func patientsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patients",
		Short: "List, register and inspect patients",
	}

	var query string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List patients, optionally filtered by name or condition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			printPatients(cmd.OutOrStdout(), a.records.FilterByNameOrCondition(query))
			return nil
		},
	}
	listCmd.Flags().StringVarP(&query, "query", "q", "", "case-insensitive match on name or condition")

	var name, area, condition, phase, notes string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new patient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			diagnosis, err := domain.ParseDiagnosis(area, condition, phase, notes)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.records.AddPatient(cmd.Context(), domain.Patient{Name: strings.TrimSpace(name), Diagnosis: diagnosis})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Paciente registrado: %s (%s)\n", p.Name, p.ID)
			return nil
		},
	}
	addCmd.Flags().StringVar(&name, "name", "", "patient name")
	addCmd.Flags().StringVar(&area, "area", string(domain.DefaultArea), "anatomical area")
	addCmd.Flags().StringVar(&condition, "condition", "", "diagnosed condition")
	addCmd.Flags().StringVar(&phase, "phase", "acute", "recovery phase: acute, subacute, strengthening or return-to-sport")
	addCmd.Flags().StringVar(&notes, "notes", "", "clinical notes")
	_ = addCmd.MarkFlagRequired("name")
	_ = addCmd.MarkFlagRequired("condition")

	showCmd := &cobra.Command{
		Use:   "show <patientId>",
		Short: "Show a patient's diagnosis and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			p, ok := a.records.FindByID(args[0])
			if !ok {
				return &domain.NotFoundError{Kind: "patient", ID: args[0]}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", p.Name, p.ID)
			fmt.Fprintf(out, "Área: %s\nCondición: %s\nFase: %s\n", p.Diagnosis.Area, p.Diagnosis.Condition, p.Diagnosis.Phase)
			if p.Diagnosis.Notes != "" {
				fmt.Fprintf(out, "Notas: %s\n", p.Diagnosis.Notes)
			}
			fmt.Fprintln(out)
			printHistory(out, p.Sessions)
			return nil
		},
	}

	cmd.AddCommand(listCmd, addCmd, showCmd)
	return cmd
}

func sessionCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Run a follow-up check-in",
	}

	var pain int
	var feedback string
	newCmd := &cobra.Command{
		Use:   "new <patientId>",
		Short: "Generate and record the next session for a patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			orchestrator, err := a.newOrchestrator()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "Generando rutina...")
			s, err := orchestrator.Submit(cmd.Context(), args[0], pain, feedback)
			if err != nil {
				return err
			}
			printRoutine(cmd.OutOrStdout(), s)
			return nil
		},
	}
	newCmd.Flags().IntVar(&pain, "pain", -1, "pain today on the 0-10 EVA scale")
	newCmd.Flags().StringVar(&feedback, "feedback", "", "patient comments")
	_ = newCmd.MarkFlagRequired("pain")
	_ = newCmd.MarkFlagRequired("feedback")

	cmd.AddCommand(newCmd)
	return cmd
}

func historyCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "history <patientId>",
		Short: "Print a patient's sessions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			p, ok := a.records.FindByID(args[0])
			if !ok {
				return &domain.NotFoundError{Kind: "patient", ID: args[0]}
			}
			printHistory(cmd.OutOrStdout(), p.Sessions)
			return nil
		},
	}
}

func printPatients(out io.Writer, patients []domain.Patient) {
	if len(patients) == 0 {
		fmt.Fprintln(out, "No se encontraron pacientes.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNOMBRE\tÁREA\tCONDICIÓN\tSESIONES")
	for _, p := range patients {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", p.ID, p.Name, p.Diagnosis.Area, p.Diagnosis.Condition, len(p.Sessions))
	}
	_ = tw.Flush()
}

func printHistory(out io.Writer, sessions []domain.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(out, "Sin sesiones registradas.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FECHA\tDOLOR\tDECISIÓN\tEJERCICIOS\tSESIÓN")
	for i := range sessions {
		s := &sessions[i]
		fmt.Fprintf(tw, "%s\t%d/10\t%s\t%d\t%s\n", s.DisplayDate(), s.PainLevel, s.Decision, len(s.Routine.Exercises), s.ID)
	}
	_ = tw.Flush()
}

func printRoutine(out io.Writer, s domain.Session) {
	r := s.Routine
	fmt.Fprintf(out, "Decisión clínica: %s\n", s.Decision)
	fmt.Fprintf(out, "Duración total: %s min  ·  Evidencia: %s\n\n", r.TotalDuration, r.EvidenceLevel)
	for i, ex := range r.Exercises {
		fmt.Fprintf(out, "%d. %s [%s, %s]\n", i+1, ex.Name, ex.MuscleGroup, ex.Difficulty)
		dose := fmt.Sprintf("%d x %d", ex.Sets, ex.Reps)
		if ex.Duration != "" {
			dose += " (" + ex.Duration + ")"
		}
		fmt.Fprintf(out, "   %s, descanso %s, %s\n", dose, ex.Rest, ex.Frequency)
		if ex.Description != "" {
			fmt.Fprintf(out, "   %s\n", ex.Description)
		}
		for _, tip := range ex.Tips {
			fmt.Fprintf(out, "   + %s\n", tip)
		}
		for _, w := range ex.Warnings {
			fmt.Fprintf(out, "   ! %s\n", w)
		}
	}
	if r.Rationale != "" {
		fmt.Fprintf(out, "\n%s\n", r.Rationale)
	}
	if len(r.References) > 0 {
		fmt.Fprintf(out, "\nReferencias:\n")
		for _, ref := range r.References {
			fmt.Fprintf(out, "- %s\n", ref)
		}
	}
}
