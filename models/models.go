package models

// This file serves as the central export point for all database models
// Import this package to access all model types

// Database schema overview:
// 1. users - employee, team lead and HR accounts with JWT authentication
// 2. refresh_tokens - tokens backing session continuity
// 3. appraisal_submissions - one row per appraisal, carrying the status
//    lifecycle, the conversation transcript as a JSON document, the generated
//    question plan, the AI analysis and the team lead review
