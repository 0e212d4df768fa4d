package main

func init() { // nolint:gochecknoinits
	rootCmd.AddCommand(serveCmd, migrateCmd, verifyCmd, fixturesCmd, configCmd, versionCmd)

	migrateCmd.Flags().StringVar(&migrationsPath, "path", "",
		"migrations source URL (default file://resources/migrations/<driver>)")
	fixturesCmd.Flags().IntVar(&fixturePhotos, "photos", 20, "number of photos to create")
	fixturesCmd.Flags().IntVar(&fixtureVotes, "votes", 200, "number of votes to cast")
	configCmd.Flags().BoolVar(&writeConfig, "write", false, "write the configuration file")
}
