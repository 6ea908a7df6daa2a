package cmd

import (
	"os"

	"github.com/spf13/cobra"

	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/model"
	"github.com/manav03panchal/livedesk/internal/runtime"
	"github.com/manav03panchal/livedesk/internal/teams"
	"github.com/manav03panchal/livedesk/internal/validate"
)

// Team command flags.
var (
	teamFlagRoles []string
	teamFlagBy    string
	teamFlagRole  string
	teamFlagTeams []string
	teamFlagSkip  int
	teamFlagLimit int
	teamFlagForce bool
)

// teamCmd represents the team command.
var teamCmd = &cobra.Command{
	Use:     "team [command]",
	Aliases: []string{"teams", "t"},
	Short:   "Manage team membership and team roles",
	Long: `Manage which users belong to which teams and the roles they hold
inside each team. A user is a member of a team at most once.

Examples:
  livedesk team add sales user1 --roles owner,moderator
  livedesk team members sales --role owner
  livedesk team list user1
  livedesk team roles remove sales user1 moderator
  livedesk team remove sales user1`,
}

var teamAddCmd = &cobra.Command{
	Use:   "add TEAM USER",
	Short: "Add a user to a team",
	Args:  cobra.ExactArgs(2),
	RunE:  runTeamAdd,
}

var teamListCmd = &cobra.Command{
	Use:   "list USER",
	Short: "List the teams a user belongs to",
	Args:  cobra.ExactArgs(1),
	RunE:  runTeamList,
}

var teamMembersCmd = &cobra.Command{
	Use:   "members TEAM...",
	Short: "List the members of one or more teams",
	Long: `List team members. With a single team the listing is paged with
--skip and --limit and reports the total; --role keeps members holding that
role.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTeamMembers,
}

var teamShowCmd = &cobra.Command{
	Use:   "show TEAM USER",
	Short: "Show one membership",
	Args:  cobra.ExactArgs(2),
	RunE:  runTeamShow,
}

var teamRolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Change the roles a member holds",
}

var teamRolesAddCmd = &cobra.Command{
	Use:   "add TEAM USER ROLE...",
	Short: "Grant roles to a member",
	Args:  cobra.MinimumNArgs(3),
	RunE:  func(cmd *cobra.Command, args []string) error { return runTeamRoles(cmd, args, true) },
}

var teamRolesRemoveCmd = &cobra.Command{
	Use:     "remove TEAM USER ROLE...",
	Aliases: []string{"rm"},
	Short:   "Revoke roles from a member",
	Args:    cobra.MinimumNArgs(3),
	RunE:    func(cmd *cobra.Command, args []string) error { return runTeamRoles(cmd, args, false) },
}

var teamRemoveCmd = &cobra.Command{
	Use:     "remove TEAM USER",
	Aliases: []string{"rm"},
	Short:   "Remove a user from a team",
	Args:    cobra.ExactArgs(2),
	RunE:    runTeamRemove,
}

var teamRemoveAllCmd = &cobra.Command{
	Use:   "remove-all TEAM",
	Short: "Remove every member of a team",
	Args:  cobra.ExactArgs(1),
	RunE:  runTeamRemoveAll,
}

func init() {
	teamAddCmd.Flags().StringSliceVarP(&teamFlagRoles, "roles", "r", nil, "Team roles (comma separated)")
	teamAddCmd.Flags().StringVar(&teamFlagBy, "by", "", "Username recorded as creator (default $USER)")

	teamListCmd.Flags().StringSliceVar(&teamFlagTeams, "teams", nil, "Only these teams")

	teamMembersCmd.Flags().StringVar(&teamFlagRole, "role", "", "Only members holding this role")
	teamMembersCmd.Flags().IntVar(&teamFlagSkip, "skip", 0, "Members to skip")
	teamMembersCmd.Flags().IntVar(&teamFlagLimit, "limit", 0, "Maximum members to list (0 means all)")

	teamRemoveAllCmd.Flags().BoolVar(&teamFlagForce, "force", false, "Skip confirmation")

	teamRolesCmd.AddCommand(teamRolesAddCmd)
	teamRolesCmd.AddCommand(teamRolesRemoveCmd)

	teamCmd.AddCommand(teamAddCmd)
	teamCmd.AddCommand(teamListCmd)
	teamCmd.AddCommand(teamMembersCmd)
	teamCmd.AddCommand(teamShowCmd)
	teamCmd.AddCommand(teamRolesCmd)
	teamCmd.AddCommand(teamRemoveCmd)
	teamCmd.AddCommand(teamRemoveAllCmd)

	rootCmd.AddCommand(teamCmd)
}

// teamArgs validates a team id and user id pair.
func teamArgs(teamID, userID string) error {
	if err := validate.ID("team", teamID); err != nil {
		return err
	}
	return validate.ID("user", userID)
}

// cleanRoles sanitizes and validates role arguments.
func cleanRoles(in []string) ([]string, error) {
	roles := make([]string, 0, len(in))
	for _, r := range in {
		if r = validate.SanitizeRole(r); r != "" {
			roles = append(roles, r)
		}
	}
	if err := validate.Roles(roles); err != nil {
		return nil, err
	}
	return roles, nil
}

func runTeamAdd(cmd *cobra.Command, args []string) error {
	teamID, userID := args[0], args[1]
	if err := teamArgs(teamID, userID); err != nil {
		return err
	}
	roles, err := cleanRoles(teamFlagRoles)
	if err != nil {
		return err
	}

	by := teamFlagBy
	if by == "" {
		by = os.Getenv("USER")
	}
	m := &model.TeamMember{
		TeamID:    teamID,
		UserID:    userID,
		Roles:     roles,
		CreatedBy: model.UserRef{ID: by, Username: by},
	}
	if err := ctx.Teams.CreateOne(cmd.Context(), m); err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintResult("created", m)
	}
	cli := ctx.CLIFormatter()
	cli.Success("Added " + cli.Name(userID) + " to " + cli.Name(teamID))
	return nil
}

func runTeamList(cmd *cobra.Command, args []string) error {
	userID := args[0]
	if err := validate.ID("user", userID); err != nil {
		return err
	}

	var (
		members []*model.TeamMember
		err     error
	)
	if len(teamFlagTeams) > 0 {
		members, err = ctx.Teams.FindByUserIDAndTeamIDs(cmd.Context(), userID, teamFlagTeams)
	} else {
		members, err = ctx.Teams.FindByUserID(cmd.Context(), userID)
	}
	if err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintList("team_members", members, len(members), 0)
	}
	ctx.CLIFormatter().PrintTeamMembers(members)
	return nil
}

func runTeamMembers(cmd *cobra.Command, args []string) error {
	for _, id := range args {
		if err := validate.ID("team", id); err != nil {
			return err
		}
	}
	if teamFlagSkip < 0 || teamFlagLimit < 0 {
		return lderrors.NewUserError("Invalid page", "--skip and --limit must not be negative")
	}
	c := cmd.Context()
	page := teams.Page{Skip: teamFlagSkip, Limit: teamFlagLimit}

	var (
		members []*model.TeamMember
		total   int
		err     error
	)
	switch {
	case teamFlagRole != "":
		if len(args) > 1 {
			return lderrors.NewUserError("--role takes a single team", "Pass one team id with --role")
		}
		members, err = ctx.Teams.FindByTeamIDAndRole(c, args[0], teamFlagRole)
		total = len(members)
		members = teams.Paginate(members, page)
	case len(args) > 1:
		members, err = ctx.Teams.FindByTeamIDs(c, args)
		total = len(members)
		members = teams.Paginate(members, page)
	default:
		var info teams.MembersInfo
		info, err = ctx.Teams.FindMembersInfoByTeamID(c, args[0], page)
		members, total = info.Members, info.Total
	}
	if err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintList("team_members", members, len(members), total)
	}
	cli := ctx.CLIFormatter()
	cli.PrintTeamMembers(members)
	if total > len(members) {
		cli.Muted("Showing " + itoa(len(members)) + " of " + itoa(total) + " members.")
	}
	return nil
}

// findMember loads a membership or returns a not-found error.
func findMember(cmd *cobra.Command, teamID, userID string) (*model.TeamMember, error) {
	if err := teamArgs(teamID, userID); err != nil {
		return nil, err
	}
	m, err := ctx.Teams.FindOneByUserAndTeam(cmd.Context(), userID, teamID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, runtime.NotFound(lderrors.ErrTeamMemberNotFound, teams.MemberKey(teamID, userID))
	}
	return m, nil
}

func runTeamShow(cmd *cobra.Command, args []string) error {
	m, err := findMember(cmd, args[0], args[1])
	if err != nil {
		return err
	}
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintResult("ok", m)
	}
	ctx.CLIFormatter().PrintTeamMembers([]*model.TeamMember{m})
	return nil
}

func runTeamRoles(cmd *cobra.Command, args []string, grant bool) error {
	teamID, userID := args[0], args[1]
	if err := teamArgs(teamID, userID); err != nil {
		return err
	}
	roles, err := cleanRoles(args[2:])
	if err != nil {
		return err
	}

	c := cmd.Context()
	if grant {
		err = ctx.Teams.UpdateRoles(c, userID, teamID, roles)
	} else {
		err = ctx.Teams.RemoveRoles(c, userID, teamID, roles)
	}
	if err != nil {
		return err
	}

	m, err := findMember(cmd, teamID, userID)
	if err != nil {
		return err
	}
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintResult("updated", m)
	}
	ctx.CLIFormatter().PrintTeamMembers([]*model.TeamMember{m})
	return nil
}

func runTeamRemove(cmd *cobra.Command, args []string) error {
	teamID, userID := args[0], args[1]
	if err := teamArgs(teamID, userID); err != nil {
		return err
	}
	existed, err := ctx.Teams.DeleteByUserAndTeam(cmd.Context(), userID, teamID)
	if err != nil {
		return err
	}
	if !existed {
		return runtime.NotFound(lderrors.ErrTeamMemberNotFound, teams.MemberKey(teamID, userID))
	}
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintResult("removed", map[string]string{"teamId": teamID, "userId": userID})
	}
	ctx.CLIFormatter().Success("Removed " + userID + " from " + teamID)
	return nil
}

func runTeamRemoveAll(cmd *cobra.Command, args []string) error {
	teamID := args[0]
	if err := validate.ID("team", teamID); err != nil {
		return err
	}
	c := cmd.Context()

	if !teamFlagForce {
		members, err := ctx.Teams.FindByTeamID(c, teamID)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			ctx.Formatter.Println("Team has no members.")
			return nil
		}
		ok, err := confirm("Remove all " + itoa(len(members)) + " members of " + teamID + "?")
		if err != nil {
			return err
		}
		if !ok {
			ctx.Formatter.Println("Cancelled.")
			return nil
		}
	}

	n, err := ctx.Teams.DeleteByTeamID(c, teamID)
	if err != nil {
		return err
	}
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintCount("removed", n)
	}
	ctx.CLIFormatter().Success("Removed " + itoa(n) + " members of " + teamID)
	return nil
}
