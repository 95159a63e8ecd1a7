package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) syncEnrollments(courseID string) error {
	fixed, err := cli.courseSvc.SyncCounters(context.Background(), courseID)
	if err != nil {
		return err
	}
	fmt.Printf("corrected counters on %d course(s)\n", fixed)
	return nil
}

func (cli *commandLine) sweepOverdue(dryRun bool) error {
	changed, err := cli.assignmentSvc.SweepOverdue(context.Background(), dryRun)
	if err != nil {
		return err
	}
	if dryRun {
		fmt.Printf("%d assignment(s) would be marked overdue\n", len(changed))
		return nil
	}
	fmt.Printf("%d assignment(s) marked overdue\n", len(changed))
	return nil
}
