package main

import (
	"fmt"

	"busticket/internal/auth"
	"busticket/internal/fleet"
	fleetdb "busticket/internal/fleet/db"
	"busticket/internal/models"
	"busticket/internal/schedule"
	scheduledb "busticket/internal/schedule/db"
	"busticket/internal/seed"
	"busticket/internal/user"
	userdb "busticket/internal/user/db"

	"github.com/spf13/cobra"
)

func seedCmd(g *globals) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert brands, routes, buses and schedules from a YAML fixtures file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fx, err := seed.ParseFile(file)
			if err != nil {
				return err
			}
			db, err := g.openBun(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			f := fleet.NewService(&fleetdb.DB{Bun: db}, g.log)
			loader := &seed.Loader{
				Fleet:     f,
				Schedules: schedule.NewService(&scheduledb.DB{Bun: db}, f, nil, g.cfg.Booking.Location(), g.log),
				Logger:    g.log,
			}
			res, err := loader.Load(cmd.Context(), fx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d brands, %d routes, %d buses, %d schedules, %d drop-off points\n",
				res.Brands, res.Routes, res.Buses, res.Schedules, res.Dropoffs)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "fixtures/seed.yaml", "fixtures file")
	return cmd
}

func createAdminCmd(g *globals) *cobra.Command {
	var req models.RegisterRequest
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Register an account with the ADMIN role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := g.openBun(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			svc := user.NewService(&userdb.DB{Bun: db}, auth.NewTokenIssuer(g.cfg.Auth.JWTSecret, g.cfg.Auth.TokenTTL), g.log)
			u, err := svc.CreateAdmin(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s created with id %d\n", u.Email, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "login e-mail")
	cmd.Flags().StringVar(&req.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&req.Name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "phone number")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
